package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// TransactionHandler exposes ledger history and the refund operation.
type TransactionHandler struct {
	refunds *services.RefundService
	logger  zerolog.Logger
}

func NewTransactionHandler(refunds *services.RefundService, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{refunds: refunds, logger: logger}
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.refunds.History(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"count":        len(txns),
	})
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	txn, err := h.refunds.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, txn)
}

// Refund reverses one of the caller's own debit transactions.
func (h *TransactionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	publicID := mux.Vars(r)["id"]
	// Ownership check before the refund itself runs.
	if _, err := h.refunds.Get(r.Context(), userID, publicID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	var req models.RefundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}

	result, err := h.refunds.Refund(r.Context(), publicID, req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
