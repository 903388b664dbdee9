package handlers

import (
	"encoding/json"
	"net/http"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/rs/zerolog"
)

type TransferHandler struct {
	payments *services.PaymentService
	logger   zerolog.Logger
}

func NewTransferHandler(payments *services.PaymentService, logger zerolog.Logger) *TransferHandler {
	return &TransferHandler{payments: payments, logger: logger}
}

func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.payments.Transfer(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
