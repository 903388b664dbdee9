package handlers

import (
	"net/http"

	"digibank/internal/middleware"
	"digibank/internal/services"

	"github.com/rs/zerolog"
)

type AccountHandler struct {
	identity *services.IdentityService
	refunds  *services.RefundService
	logger   zerolog.Logger
}

func NewAccountHandler(identity *services.IdentityService, refunds *services.RefundService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{identity: identity, refunds: refunds, logger: logger}
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	_, account, err := h.identity.Me(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"account_number": account.AccountNumber,
		"balance":        account.Balance,
		"currency":       account.Currency,
	})
}

// Reconciliation compares the stored balance with the sum of successful
// ledger entries for the caller's primary account.
func (h *AccountHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	_, account, err := h.identity.Me(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	stored, computed, err := h.refunds.Reconcile(r.Context(), account.ID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":     account.ID,
		"stored_balance": stored,
		"ledger_balance": computed,
		"balanced":       stored.Equal(computed),
	})
}
