package handlers

import (
	"encoding/json"
	"net/http"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// GatewayHandler is the merchant-facing surface, authenticated with API
// keys rather than user JWTs.
type GatewayHandler struct {
	gateway *services.GatewayService
	logger  zerolog.Logger
}

func NewGatewayHandler(gateway *services.GatewayService, logger zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{gateway: gateway, logger: logger}
}

func (h *GatewayHandler) Payment(w http.ResponseWriter, r *http.Request) {
	merchant, ok := middleware.GetMerchant(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Merchant not authenticated")
		return
	}

	var req models.GatewayPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.gateway.ProcessPayment(r.Context(), merchant, req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *GatewayHandler) Refund(w http.ResponseWriter, r *http.Request) {
	merchant, ok := middleware.GetMerchant(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Merchant not authenticated")
		return
	}

	var req models.RefundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	}

	result, err := h.gateway.ProcessRefund(r.Context(), merchant, mux.Vars(r)["id"], req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
