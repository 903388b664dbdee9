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

// UPIHandler exposes the UPI surface: handle registration and lookup,
// payments, PIN reset and money requests.
type UPIHandler struct {
	creds    *services.CredentialGate
	payments *services.PaymentService
	requests *services.MoneyRequestService
	logger   zerolog.Logger
}

func NewUPIHandler(creds *services.CredentialGate, payments *services.PaymentService, requests *services.MoneyRequestService, logger zerolog.Logger) *UPIHandler {
	return &UPIHandler{
		creds:    creds,
		payments: payments,
		requests: requests,
		logger:   logger,
	}
}

func (h *UPIHandler) CreateHandle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.CreateUPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.creds.RegisterUPI(r.Context(), userID, req.Handle, req.PIN); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{
		"upi_handle": req.Handle,
		"status":     "registered",
	})
}

// ValidateHandle resolves a handle to a display name without
// authentication details.
func (h *UPIHandler) ValidateHandle(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("handle")
	if handle == "" {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "handle query parameter is required")
		return
	}

	user, err := h.creds.ValidateHandle(r.Context(), handle)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"upi_handle": user.UPIHandle,
		"name":       user.Name,
	})
}

func (h *UPIHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.payments.Pay(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *UPIHandler) SendPINResetOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	if err := h.creds.SendResetOTP(r.Context(), userID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "otp_sent"})
}

func (h *UPIHandler) ResetPIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.ResetPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.creds.ResetPIN(r.Context(), userID, req.OTP, req.NewPIN); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "pin_reset"})
}

func (h *UPIHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.MoneyRequestCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	request, err := h.requests.Send(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, request)
}

func (h *UPIHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	requests, err := h.requests.List(r.Context(), userID, r.URL.Query().Get("direction"), limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

func (h *UPIHandler) RespondRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.requests.Respond(r.Context(), userID, mux.Vars(r)["id"], req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
