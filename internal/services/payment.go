package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"
	"digibank/internal/notify"
	"digibank/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// minRechargeAmount keeps operator settlement attempts above the floor
// the operators themselves enforce.
var minRechargeAmount = decimal.NewFromInt(10)

func newTransactionID() string {
	return "txn_" + uuid.NewString()
}

// PaymentService is the money movement engine. Every balance-mutating
// workflow runs inside one store unit of work: the ledger entries and the
// balance adjustments commit together or not at all.
type PaymentService struct {
	store      store.Store
	creds      *CredentialGate
	settle     SettlementGateway
	dispatcher notify.Dispatcher
	logger     zerolog.Logger
}

func NewPaymentService(st store.Store, creds *CredentialGate, settle SettlementGateway, dispatcher notify.Dispatcher, logger zerolog.Logger) *PaymentService {
	return &PaymentService{
		store:      st,
		creds:      creds,
		settle:     settle,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (s *PaymentService) dispatch(ctx context.Context, ev notify.Event) {
	// Best-effort: a committed transfer is never unwound because the
	// notification channel is down.
	if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("event", string(ev.Type)).Msg("Notification dispatch failed")
	}
}

// moveFunds debits one account and credits the other together with their
// ledger entries inside a single unit of work.
func (s *PaymentService) moveFunds(ctx context.Context, debit, credit *models.Transaction) error {
	return s.store.Do(ctx, func(session store.Session) error {
		return s.moveFundsIn(ctx, session, debit, credit)
	})
}

// moveFundsIn is the session-scoped body of moveFunds, so a caller with
// writes of its own can commit them in the same unit of work. Accounts
// are adjusted in ascending id order so two opposing transfers cannot
// deadlock.
func (s *PaymentService) moveFundsIn(ctx context.Context, session store.Session, debit, credit *models.Transaction) error {
	if err := session.Ledger().RecordPending(ctx, debit); err != nil {
		return err
	}
	if err := session.Ledger().RecordPending(ctx, credit); err != nil {
		return err
	}

	adjustments := []struct {
		accountID int64
		delta     decimal.Decimal
	}{
		{debit.AccountID, debit.Amount.Neg()},
		{credit.AccountID, credit.Amount},
	}
	if adjustments[0].accountID > adjustments[1].accountID {
		adjustments[0], adjustments[1] = adjustments[1], adjustments[0]
	}
	for _, adj := range adjustments {
		if _, err := session.Accounts().AdjustBalance(ctx, adj.accountID, adj.delta); err != nil {
			return err
		}
	}

	if err := session.Ledger().MarkSuccessful(ctx, debit.PublicID, ""); err != nil {
		return err
	}
	return session.Ledger().MarkSuccessful(ctx, credit.PublicID, "")
}

// preparePay validates a UPI payment and builds its two ledger legs:
// resolve the recipient handle, check balance and currency, verify the
// PIN. Nothing is written yet.
func (s *PaymentService) preparePay(ctx context.Context, senderID int64, req models.PayRequest) (debit, credit *models.Transaction, err error) {
	if !req.Amount.IsPositive() {
		return nil, nil, errs.E(errs.InvalidInput, "amount must be greater than zero")
	}

	sender, err := s.store.Users().GetByID(ctx, senderID)
	if err != nil {
		return nil, nil, err
	}
	if sender.UPIHandle == "" {
		return nil, nil, errs.E(errs.NotFound, "sender UPI handle not found")
	}

	recipient, err := s.store.Users().GetByUPI(ctx, req.RecipientUPI)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil, nil, errs.E(errs.NotFound, "recipient UPI handle not found")
		}
		return nil, nil, err
	}

	senderAcc, err := s.store.Accounts().PrimaryForUser(ctx, sender.ID)
	if err != nil {
		return nil, nil, err
	}
	recipientAcc, err := s.store.Accounts().PrimaryForUser(ctx, recipient.ID)
	if err != nil {
		return nil, nil, err
	}
	if senderAcc.Currency != recipientAcc.Currency {
		return nil, nil, errs.E(errs.InvalidInput, "currency mismatch between accounts")
	}

	// Validation failures abort before anything is written; the atomic
	// overdraft check inside the unit of work still closes the race.
	if senderAcc.Balance.LessThan(req.Amount) {
		return nil, nil, errs.E(errs.InsufficientFunds, "insufficient balance")
	}

	if err := s.creds.Verify(ctx, senderID, req.PIN); err != nil {
		return nil, nil, err
	}

	transferID := uuid.NewString()
	debit = &models.Transaction{
		PublicID:     newTransactionID(),
		AccountID:    senderAcc.ID,
		UserID:       sender.ID,
		Amount:       req.Amount,
		Currency:     senderAcc.Currency,
		Type:         models.TransactionTypeDebit,
		Remark:       paymentRemark(req.Note, "UPI payment to "+recipient.Name),
		SenderUPI:    sender.UPIHandle,
		RecipientUPI: recipient.UPIHandle,
		TransferID:   transferID,
		TransferType: models.TransferTypeUPI,
	}
	credit = &models.Transaction{
		PublicID:     newTransactionID(),
		AccountID:    recipientAcc.ID,
		UserID:       recipient.ID,
		Amount:       req.Amount,
		Currency:     recipientAcc.Currency,
		Type:         models.TransactionTypeCredit,
		Remark:       paymentRemark(req.Note, "UPI payment from "+sender.Name),
		SenderUPI:    sender.UPIHandle,
		RecipientUPI: recipient.UPIHandle,
		TransferID:   transferID,
		TransferType: models.TransferTypeUPI,
	}
	return debit, credit, nil
}

// Pay executes a UPI peer-to-peer payment: resolve the recipient handle,
// verify the PIN, then atomically debit the sender and credit the
// recipient with two linked ledger entries.
func (s *PaymentService) Pay(ctx context.Context, senderID int64, req models.PayRequest) (*models.PayResult, error) {
	debit, credit, err := s.preparePay(ctx, senderID, req)
	if err != nil {
		return nil, err
	}
	if err := s.moveFunds(ctx, debit, credit); err != nil {
		return nil, err
	}
	return s.completePay(ctx, debit, credit), nil
}

// completePay logs and dispatches a committed payment and builds the
// caller-facing result from its debit leg.
func (s *PaymentService) completePay(ctx context.Context, debit, credit *models.Transaction) *models.PayResult {
	s.logger.Info().
		Int64("sender_id", debit.UserID).
		Int64("recipient_id", credit.UserID).
		Str("transaction_id", debit.PublicID).
		Str("amount", debit.Amount.String()).
		Msg("UPI payment completed")

	s.dispatch(ctx, notify.Event{
		Type:          notify.EventPaymentCompleted,
		UserID:        debit.UserID,
		TransactionID: debit.PublicID,
		Amount:        debit.Amount.String(),
		Currency:      debit.Currency,
		Timestamp:     time.Now(),
	})

	return &models.PayResult{
		TransactionID: debit.PublicID,
		Status:        "success",
		Amount:        debit.Amount,
		SenderUPI:     debit.SenderUPI,
		RecipientUPI:  debit.RecipientUPI,
		Timestamp:     time.Now(),
	}
}

// Transfer moves money to another local account addressed by account
// number. The transfer type (IMPS/NEFT/RTGS) is carried as metadata only.
func (s *PaymentService) Transfer(ctx context.Context, senderID int64, req models.TransferRequest) (*models.TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, errs.E(errs.InvalidInput, "amount must be greater than zero")
	}
	if !req.TransferType.Valid() || req.TransferType == models.TransferTypeUPI {
		return nil, errs.E(errs.InvalidInput, "transfer type must be IMPS, NEFT or RTGS")
	}

	sender, err := s.store.Users().GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	senderAcc, err := s.store.Accounts().PrimaryForUser(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	recipientAcc, err := s.store.Accounts().GetByNumber(ctx, req.RecipientAccount)
	if err != nil {
		return nil, err
	}
	if senderAcc.ID == recipientAcc.ID {
		return nil, errs.E(errs.InvalidInput, "cannot transfer to the same account")
	}
	if senderAcc.Currency != recipientAcc.Currency {
		return nil, errs.E(errs.InvalidInput, "currency mismatch between accounts")
	}
	if senderAcc.Balance.LessThan(req.Amount) {
		return nil, errs.E(errs.InsufficientFunds, "insufficient balance")
	}

	if err := s.creds.Verify(ctx, senderID, req.PIN); err != nil {
		return nil, err
	}

	transferID := uuid.NewString()
	debit := &models.Transaction{
		PublicID:            newTransactionID(),
		AccountID:           senderAcc.ID,
		UserID:              sender.ID,
		Amount:              req.Amount,
		Currency:            senderAcc.Currency,
		Type:                models.TransactionTypeDebit,
		Remark:              paymentRemark(req.Remark, string(req.TransferType)+" transfer to "+req.RecipientAccount),
		TransferID:          transferID,
		TransferType:        req.TransferType,
		CounterpartyAccount: recipientAcc.AccountNumber,
	}
	credit := &models.Transaction{
		PublicID:            newTransactionID(),
		AccountID:           recipientAcc.ID,
		UserID:              recipientAcc.UserID,
		Amount:              req.Amount,
		Currency:            recipientAcc.Currency,
		Type:                models.TransactionTypeCredit,
		Remark:              paymentRemark(req.Remark, string(req.TransferType)+" transfer from "+senderAcc.AccountNumber),
		TransferID:          transferID,
		TransferType:        req.TransferType,
		CounterpartyAccount: senderAcc.AccountNumber,
	}

	if err := s.moveFunds(ctx, debit, credit); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("sender_id", sender.ID).
		Str("transfer_id", transferID).
		Str("transfer_type", string(req.TransferType)).
		Str("amount", req.Amount.String()).
		Msg("Internal transfer completed")

	s.dispatch(ctx, notify.Event{
		Type:          notify.EventTransferCompleted,
		UserID:        sender.ID,
		TransactionID: debit.PublicID,
		Amount:        req.Amount.String(),
		Currency:      senderAcc.Currency,
		Timestamp:     time.Now(),
	})

	return &models.TransferResult{TransferID: transferID, Status: "success"}, nil
}

// Recharge processes a mobile recharge debit against the user's primary
// account. Bill payments share the same settlement shape via BillPayment.
func (s *PaymentService) Recharge(ctx context.Context, userID int64, req models.RechargeRequest) (*models.RechargeResult, error) {
	if !mobilePattern.MatchString(req.TargetIdentifier) {
		return nil, errs.E(errs.InvalidInput, "invalid mobile number format")
	}
	remark := fmt.Sprintf("Mobile recharge - %s - %s", req.Operator, req.TargetIdentifier)
	return s.settleDebit(ctx, userID, "recharge", req.TargetIdentifier, req.Amount, remark, req.Mode)
}

// BillPayment processes a utility bill debit.
func (s *PaymentService) BillPayment(ctx context.Context, userID int64, req models.RechargeRequest) (*models.RechargeResult, error) {
	if req.TargetIdentifier == "" {
		return nil, errs.E(errs.InvalidInput, "consumer number is required")
	}
	remark := fmt.Sprintf("Bill payment - %s - %s", req.BillType, req.TargetIdentifier)
	return s.settleDebit(ctx, userID, "bill", req.TargetIdentifier, req.Amount, remark, req.Mode)
}

// settleDebit is the single-sided debit + external settlement workflow.
// The pending entry is written first so a crash mid-settlement leaves
// forensic evidence; the balance is only deducted after the settlement
// reports success, so a failed settlement can never leave the user
// debited.
func (s *PaymentService) settleDebit(ctx context.Context, userID int64, kind, target string, amount decimal.Decimal, remark string, mode models.RechargeMode) (*models.RechargeResult, error) {
	if amount.LessThan(minRechargeAmount) {
		return nil, errs.E(errs.InvalidInput, "minimum amount is 10")
	}
	if mode != models.RechargeModeDemo && mode != models.RechargeModeReal {
		return nil, errs.E(errs.InvalidInput, "mode must be demo or real")
	}

	account, err := s.store.Accounts().PrimaryForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if mode == models.RechargeModeDemo {
		return s.demoDebit(ctx, userID, account, amount, remark)
	}

	if account.Balance.LessThan(amount) {
		return nil, errs.E(errs.InsufficientFunds, "insufficient balance")
	}

	txn := &models.Transaction{
		PublicID:  newTransactionID(),
		AccountID: account.ID,
		UserID:    userID,
		Amount:    amount,
		Currency:  account.Currency,
		Type:      models.TransactionTypeDebit,
		Remark:    remark,
	}
	if err := s.store.Do(ctx, func(session store.Session) error {
		return session.Ledger().RecordPending(ctx, txn)
	}); err != nil {
		return nil, err
	}

	result, err := s.settle.Attempt(ctx, SettlementRequest{
		Reference: txn.PublicID,
		Kind:      kind,
		Target:    target,
		Amount:    amount,
		Currency:  account.Currency,
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
			s.logger.Error().Err(markErr).Str("transaction_id", txn.PublicID).Msg("Failed to mark settlement failure")
		}
		s.logger.Warn().Str("transaction_id", txn.PublicID).Str("reason", reason).Msg("Settlement failed")
		return nil, errs.E(errs.ExternalFailure, "settlement failed: "+reason)
	}

	var newBalance decimal.Decimal
	if err := s.store.Do(ctx, func(session store.Session) error {
		acc, err := session.Accounts().AdjustBalance(ctx, account.ID, amount.Neg())
		if err != nil {
			return err
		}
		newBalance = acc.Balance
		return session.Ledger().MarkSuccessful(ctx, txn.PublicID, result.Reference)
	}); err != nil {
		// Settlement went through but the debit no longer fits; the
		// entry is failed so reconciliation can pick the mismatch up.
		if markErr := s.store.Do(ctx, func(session store.Session) error {
			return session.Ledger().MarkFailed(ctx, txn.PublicID, "debit failed after settlement: "+err.Error())
		}); markErr != nil {
			s.logger.Error().Err(markErr).Str("transaction_id", txn.PublicID).Msg("Failed to mark post-settlement failure")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("transaction_id", txn.PublicID).
		Str("kind", kind).
		Str("amount", amount.String()).
		Msg("Settlement debit completed")

	s.dispatch(ctx, notify.Event{
		Type:          notify.EventRechargeCompleted,
		UserID:        userID,
		TransactionID: txn.PublicID,
		Amount:        amount.String(),
		Currency:      account.Currency,
		Detail:        remark,
		Timestamp:     time.Now(),
	})

	return &models.RechargeResult{
		TransactionID: txn.PublicID,
		Status:        "success",
		NewBalance:    &newBalance,
	}, nil
}

// RechargeHistory lists the user's recharge and bill payment entries,
// newest first. These are the single-sided debits: no transfer pairing
// and no refund linkage.
func (s *PaymentService) RechargeHistory(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	txns, err := s.store.Ledger().ListByUser(ctx, userID, limit*2, 0)
	if err != nil {
		return nil, err
	}
	history := make([]*models.Transaction, 0, limit)
	for _, txn := range txns {
		if txn.Type != models.TransactionTypeDebit || txn.TransferID != "" || txn.OriginalPublicID != "" {
			continue
		}
		history = append(history, txn)
		if len(history) == limit {
			break
		}
	}
	return history, nil
}

// demoDebit records a flagged ledger entry without touching the balance,
// so demo activity never enters reconciliation totals.
func (s *PaymentService) demoDebit(ctx context.Context, userID int64, account *models.Account, amount decimal.Decimal, remark string) (*models.RechargeResult, error) {
	txn := &models.Transaction{
		PublicID:  newTransactionID(),
		AccountID: account.ID,
		UserID:    userID,
		Amount:    amount,
		Currency:  account.Currency,
		Type:      models.TransactionTypeDebit,
		Remark:    "Demo: " + remark,
		IsDemo:    true,
	}
	if err := s.store.Do(ctx, func(session store.Session) error {
		if err := session.Ledger().RecordPending(ctx, txn); err != nil {
			return err
		}
		return session.Ledger().MarkSuccessful(ctx, txn.PublicID, "")
	}); err != nil {
		return nil, err
	}

	balance := account.Balance
	return &models.RechargeResult{
		TransactionID: txn.PublicID,
		Status:        "success",
		IsDemo:        true,
		NewBalance:    &balance,
	}, nil
}

func paymentRemark(note, fallback string) string {
	if note != "" {
		return note
	}
	return fallback
}
