package services

import (
	"context"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"
	"digibank/internal/notify"
	"digibank/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RefundService reverses successful debits. A refund credits the debited
// account, writes a refund ledger entry linked to the original, and flips
// the original's refunded flag, all in one unit of work. The flag is what
// makes a second refund attempt fail.
type RefundService struct {
	store      store.Store
	dispatcher notify.Dispatcher
	logger     zerolog.Logger
}

func NewRefundService(st store.Store, dispatcher notify.Dispatcher, logger zerolog.Logger) *RefundService {
	return &RefundService{store: st, dispatcher: dispatcher, logger: logger}
}

// Refund reverses the transaction identified by publicID. A nil amount
// means a full refund; a partial amount may not exceed the original.
func (s *RefundService) Refund(ctx context.Context, publicID string, req models.RefundRequest) (*models.RefundResult, error) {
	original, err := s.store.Ledger().GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if original.Type != models.TransactionTypeDebit {
		return nil, errs.E(errs.InvalidState, "only debit transactions can be refunded here")
	}
	if !original.Refundable() {
		if original.Refunded {
			return nil, errs.E(errs.InvalidState, "transaction has already been refunded")
		}
		if original.OriginalPublicID != "" {
			return nil, errs.E(errs.InvalidState, "a reversal entry cannot be refunded")
		}
		return nil, errs.E(errs.InvalidState, "only successful debit transactions can be refunded")
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
		reason = "Refund for " + original.PublicID
	}

	refund := &models.Transaction{
		PublicID:         newTransactionID(),
		AccountID:        original.AccountID,
		UserID:           original.UserID,
		Amount:           amount,
		Currency:         original.Currency,
		Type:             models.TransactionTypeRefund,
		Remark:           reason,
		OriginalPublicID: original.PublicID,
		IsDemo:           original.IsDemo,
	}

	if err := s.store.Do(ctx, func(session store.Session) error {
		if !original.IsDemo {
			if _, err := session.Accounts().AdjustBalance(ctx, original.AccountID, amount); err != nil {
				return err
			}
		}
		if err := session.Ledger().RecordPending(ctx, refund); err != nil {
			return err
		}
		if err := session.Ledger().MarkSuccessful(ctx, refund.PublicID, original.BankReference); err != nil {
			return err
		}
		// MarkRefunded re-checks refundability under lock, so a racing
		// second refund loses here and the whole unit of work rolls back.
		return session.Ledger().MarkRefunded(ctx, original.PublicID)
	}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", original.UserID).
		Str("transaction_id", original.PublicID).
		Str("refund_transaction_id", refund.PublicID).
		Str("amount", amount.String()).
		Msg("Refund completed")

	if err := s.dispatcher.Dispatch(ctx, notify.Event{
		Type:          notify.EventRefundCompleted,
		UserID:        original.UserID,
		TransactionID: refund.PublicID,
		Amount:        amount.String(),
		Currency:      original.Currency,
		Detail:        reason,
		Timestamp:     time.Now(),
	}); err != nil {
		s.logger.Error().Err(err).Str("transaction_id", refund.PublicID).Msg("Notification dispatch failed")
	}

	return &models.RefundResult{
		RefundTransactionID: refund.PublicID,
		Status:              "success",
		Amount:              amount,
	}, nil
}

// History returns the user's ledger entries, newest first.
func (s *RefundService) History(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Ledger().ListByUser(ctx, userID, limit, offset)
}

// Get returns a single ledger entry, restricted to its owner.
func (s *RefundService) Get(ctx context.Context, userID int64, publicID string) (*models.Transaction, error) {
	txn, err := s.store.Ledger().GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, errs.E(errs.NotFound, "transaction not found")
	}
	return txn, nil
}

// Reconcile recomputes an account's balance from its successful ledger
// entries and reports any drift against the stored balance.
func (s *RefundService) Reconcile(ctx context.Context, accountID int64) (stored, computed decimal.Decimal, err error) {
	account, err := s.store.Accounts().Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	computed, err = s.store.Ledger().SumSuccessful(ctx, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !account.Balance.Equal(computed) {
		s.logger.Warn().
			Int64("account_id", accountID).
			Str("stored", account.Balance.String()).
			Str("computed", computed.String()).
			Msg("Balance drift detected during reconciliation")
	}
	return account.Balance, computed, nil
}
