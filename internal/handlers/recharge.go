package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/rs/zerolog"
)

// RechargeHandler covers mobile recharges and utility bill payments,
// both single-sided debits settled against an external operator.
type RechargeHandler struct {
	payments *services.PaymentService
	logger   zerolog.Logger
}

func NewRechargeHandler(payments *services.PaymentService, logger zerolog.Logger) *RechargeHandler {
	return &RechargeHandler{payments: payments, logger: logger}
}

func (h *RechargeHandler) Recharge(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.payments.Recharge)
}

func (h *RechargeHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.payments.BillPayment)
}

func (h *RechargeHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.payments.RechargeHistory(r.Context(), userID, limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"recharges": history,
		"count":     len(history),
	})
}

func (h *RechargeHandler) handle(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, models.RechargeRequest) (*models.RechargeResult, error)) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.RechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := fn(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
