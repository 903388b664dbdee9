package handlers

import (
	"encoding/json"
	"net/http"

	"digibank/internal/errs"

	"github.com/rs/zerolog"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	respondWithJSON(w, code, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// respondServiceError maps a service error to its HTTP representation.
// Untyped errors surface as opaque 500s; their detail stays in the logs.
func respondServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	kind := errs.KindOf(err)
	if kind == errs.Internal {
		logger.Error().Err(err).Msg("Internal error")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		return
	}
	respondWithError(w, errs.HTTPStatus(kind), errs.Code(kind), err.Error())
}
