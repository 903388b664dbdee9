package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"
	"digibank/internal/store"

	"github.com/rs/zerolog"
)

// GatewayService accepts merchant-initiated payments and refunds over the
// API-key surface. Funds land on the merchant's primary account after the
// settlement gateway confirms the collection from the customer's bank.
type GatewayService struct {
	store         store.Store
	settle        SettlementGateway
	logger        zerolog.Logger
	webhookSecret string
	client        *http.Client
}

func NewGatewayService(st store.Store, settle SettlementGateway, webhookSecret string, logger zerolog.Logger) *GatewayService {
	return &GatewayService{
		store:         st,
		settle:        settle,
		logger:        logger,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// webhookPayload is the callback body merchants verify with X-Signature.
type webhookPayload struct {
	Event         string `json:"event"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
}

// ProcessPayment collects a payment on behalf of the merchant. The
// merchant must have a verified, active bank account linked; the credit is
// only applied after the settlement attempt succeeds.
func (s *GatewayService) ProcessPayment(ctx context.Context, merchant *models.User, req models.GatewayPaymentRequest) (*models.GatewayPaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, errs.E(errs.InvalidInput, "amount must be greater than zero")
	}
	if req.Customer.Email == "" {
		return nil, errs.E(errs.InvalidInput, "customer email is required")
	}

	bank, err := s.store.Users().VerifiedBankAccount(ctx, merchant.ID)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil, errs.E(errs.Forbidden, "a verified and active bank account is required to accept payments")
		}
		return nil, err
	}

	account, err := s.store.Accounts().PrimaryForUser(ctx, merchant.ID)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = account.Currency
	}
	if currency != account.Currency {
		return nil, errs.E(errs.InvalidInput, "currency mismatch with merchant account")
	}

	txn := &models.Transaction{
		PublicID:  newTransactionID(),
		AccountID: account.ID,
		UserID:    merchant.ID,
		Amount:    req.Amount,
		Currency:  currency,
		Type:      models.TransactionTypeCredit,
		Remark:    "Gateway payment from " + req.Customer.Email,
	}
	if err := s.store.Do(ctx, func(session store.Session) error {
		return session.Ledger().RecordPending(ctx, txn)
	}); err != nil {
		return nil, err
	}

	result, err := s.settle.Attempt(ctx, SettlementRequest{
		Reference: txn.PublicID,
		Kind:      "gateway",
		Target:    bank.AccountNumber,
		Amount:    req.Amount,
		Currency:  currency,
	})
	if err != nil || !result.Success {
		reason := result.Message
		if err != nil {
			reason = err.Error()
		}
		if reason == "" {
			reason = "settlement declined"
		}
		if markErr := s.store.Do(ctx, func(session store.Session) error {
			return session.Ledger().MarkFailed(ctx, txn.PublicID, reason)
		}); markErr != nil {
			s.logger.Error().Err(markErr).Str("transaction_id", txn.PublicID).Msg("Failed to mark gateway settlement failure")
		}
		s.sendCallback(req.CallbackURL, webhookPayload{
			Event:         "payment.failed",
			TransactionID: txn.PublicID,
			Amount:        req.Amount.String(),
			Currency:      currency,
			Status:        "failed",
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
		return nil, errs.E(errs.ExternalFailure, "payment settlement failed: "+reason)
	}

	if err := s.store.Do(ctx, func(session store.Session) error {
		if _, err := session.Accounts().AdjustBalance(ctx, account.ID, req.Amount); err != nil {
			return err
		}
		return session.Ledger().MarkSuccessful(ctx, txn.PublicID, result.Reference)
	}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("merchant_id", merchant.ID).
		Str("transaction_id", txn.PublicID).
		Str("amount", req.Amount.String()).
		Msg("Gateway payment completed")

	s.sendCallback(req.CallbackURL, webhookPayload{
		Event:         "payment.completed",
		TransactionID: txn.PublicID,
		Amount:        req.Amount.String(),
		Currency:      currency,
		Status:        "success",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})

	return &models.GatewayPaymentResult{
		TransactionID: txn.PublicID,
		Status:        "success",
		Amount:        req.Amount,
		Currency:      currency,
		BankReference: result.Reference,
	}, nil
}

// ProcessRefund reverses a gateway payment: the merchant account is
// debited, a reversal entry linked to the original is written and the
// original is flagged refunded, all in one unit of work.
func (s *GatewayService) ProcessRefund(ctx context.Context, merchant *models.User, publicID string, req models.RefundRequest) (*models.RefundResult, error) {
	original, err := s.store.Ledger().GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if original.UserID != merchant.ID {
		return nil, errs.E(errs.NotFound, "transaction not found")
	}
	if original.Type != models.TransactionTypeCredit {
		return nil, errs.E(errs.InvalidState, "only gateway payments can be refunded")
	}
	if !original.Refundable() {
		if original.Refunded {
			return nil, errs.E(errs.InvalidState, "transaction has already been refunded")
		}
		return nil, errs.E(errs.InvalidState, "only successful payments can be refunded")
	}

	amount := original.Amount
	if req.Amount != nil {
		amount = *req.Amount
		if !amount.IsPositive() {
			return nil, errs.E(errs.InvalidInput, "refund amount must be greater than zero")
		}
		if amount.GreaterThan(original.Amount) {
			return nil, errs.E(errs.InvalidInput, "refund amount cannot exceed the original transaction amount")
		}
	}

	reason := req.Reason
	if reason == "" {
		reason = "Gateway refund for " + original.PublicID
	}

	// The reversal is a debit entry so reconciliation subtracts it from
	// the merchant balance.
	reversal := &models.Transaction{
		PublicID:         newTransactionID(),
		AccountID:        original.AccountID,
		UserID:           original.UserID,
		Amount:           amount,
		Currency:         original.Currency,
		Type:             models.TransactionTypeDebit,
		Remark:           reason,
		OriginalPublicID: original.PublicID,
	}

	if err := s.store.Do(ctx, func(session store.Session) error {
		if _, err := session.Accounts().AdjustBalance(ctx, original.AccountID, amount.Neg()); err != nil {
			return err
		}
		if err := session.Ledger().RecordPending(ctx, reversal); err != nil {
			return err
		}
		if err := session.Ledger().MarkSuccessful(ctx, reversal.PublicID, original.BankReference); err != nil {
			return err
		}
		return session.Ledger().MarkRefunded(ctx, original.PublicID)
	}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("merchant_id", merchant.ID).
		Str("transaction_id", original.PublicID).
		Str("refund_transaction_id", reversal.PublicID).
		Str("amount", amount.String()).
		Msg("Gateway refund completed")

	return &models.RefundResult{
		RefundTransactionID: reversal.PublicID,
		Status:              "success",
		Amount:              amount,
	}, nil
}

// Sign computes the hex HMAC-SHA256 of body under the webhook secret.
// Exposed so merchants' integration tests can reproduce the signature.
func (s *GatewayService) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// sendCallback posts the signed payload to the merchant callback URL.
// Delivery is best-effort; failures are logged and never affect the
// already-settled transaction.
func (s *GatewayService) sendCallback(url string, payload webhookPayload) {
	if url == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode webhook payload")
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Str("url", url).Msg("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", s.Sign(body))

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Str("transaction_id", payload.TransactionID).Msg("Webhook delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn().Int("status", resp.StatusCode).Str("url", url).Str("transaction_id", payload.TransactionID).Msg("Webhook rejected by merchant endpoint")
	}
}
