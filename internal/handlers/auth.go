package handlers

import (
	"encoding/json"
	"net/http"

	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/rs/zerolog"
)

type AuthHandler struct {
	identity *services.IdentityService
	logger   zerolog.Logger
}

func NewAuthHandler(identity *services.IdentityService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	resp, err := h.identity.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	resp, err := h.identity.Login(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	user, account, err := h.identity.Me(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user":    user,
		"account": account,
	})
}
