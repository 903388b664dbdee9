package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"

	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store code
// runs inside and outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	db *sql.DB
	sqlSession
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, sqlSession: sqlSession{q: db}}
}

// Do opens one database transaction and runs fn against a Session bound
// to it. Row locks taken via FOR UPDATE inside fn are held until commit,
// which is what serializes concurrent debits against one account.
func (s *SQLStore) Do(ctx context.Context, fn func(Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(sqlSession{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlSession struct {
	q querier
}

func (s sqlSession) Accounts() AccountStore { return sqlAccounts{q: s.q} }
func (s sqlSession) Ledger() Ledger         { return sqlLedger{q: s.q} }
func (s sqlSession) Requests() RequestStore { return sqlRequests{q: s.q} }
func (s sqlSession) Users() UserStore       { return sqlUsers{q: s.q} }

type sqlAccounts struct {
	q querier
}

const accountColumns = "id, user_id, account_number, kind, currency, balance, created_at, updated_at"

func scanAccount(row *sql.Row) (*models.Account, error) {
	var acc models.Account
	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.AccountNumber, &acc.Kind,
		&acc.Currency, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &acc, nil
}

func (a sqlAccounts) Get(ctx context.Context, id int64) (*models.Account, error) {
	return scanAccount(a.q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
}

func (a sqlAccounts) GetByNumber(ctx context.Context, number string) (*models.Account, error) {
	return scanAccount(a.q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE account_number = ?", number))
}

func (a sqlAccounts) PrimaryForUser(ctx context.Context, userID int64) (*models.Account, error) {
	return scanAccount(a.q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY id LIMIT 1", userID))
}

func (a sqlAccounts) Create(ctx context.Context, acc *models.Account) error {
	result, err := a.q.ExecContext(ctx,
		"INSERT INTO accounts (user_id, account_number, kind, currency, balance) VALUES (?, ?, ?, ?, ?)",
		acc.UserID, acc.AccountNumber, acc.Kind, acc.Currency, acc.Balance,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	acc.ID, err = result.LastInsertId()
	return err
}

func (a sqlAccounts) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.Account, error) {
	// The FOR UPDATE row lock makes the read-check-write sequence atomic
	// with respect to any concurrent adjuster in another transaction.
	var balance decimal.Decimal
	err := a.q.QueryRowContext(ctx,
		"SELECT balance FROM accounts WHERE id = ? FOR UPDATE", id).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	newBalance := balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, errs.E(errs.InsufficientFunds, "insufficient balance")
	}

	_, err = a.q.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, updated_at = NOW() WHERE id = ?",
		newBalance, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return a.Get(ctx, id)
}

type sqlLedger struct {
	q querier
}

const txnColumns = `id, public_id, account_id, user_id, amount, currency, type, status, remark,
	sender_upi, recipient_upi, transfer_id, transfer_type, counterparty_account,
	bank_reference, failure_reason, original_public_id, refunded, is_demo, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTxn(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.PublicID, &t.AccountID, &t.UserID, &t.Amount, &t.Currency,
		&t.Type, &t.Status, &t.Remark, &t.SenderUPI, &t.RecipientUPI,
		&t.TransferID, &t.TransferType, &t.CounterpartyAccount,
		&t.BankReference, &t.FailureReason, &t.OriginalPublicID,
		&t.Refunded, &t.IsDemo, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &t, nil
}

func (l sqlLedger) RecordPending(ctx context.Context, txn *models.Transaction) error {
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	result, err := l.q.ExecContext(ctx,
		`INSERT INTO transactions
		(public_id, account_id, user_id, amount, currency, type, status, remark,
		 sender_upi, recipient_upi, transfer_id, transfer_type, counterparty_account,
		 original_public_id, is_demo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.PublicID, txn.AccountID, txn.UserID, txn.Amount, txn.Currency,
		txn.Type, txn.Status, txn.Remark, txn.SenderUPI, txn.RecipientUPI,
		txn.TransferID, txn.TransferType, txn.CounterpartyAccount,
		txn.OriginalPublicID, txn.IsDemo,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	txn.ID, err = result.LastInsertId()
	return err
}

func (l sqlLedger) transition(ctx context.Context, publicID string, to models.TransactionStatus, set string, args ...any) error {
	var current models.TransactionStatus
	err := l.q.QueryRowContext(ctx,
		"SELECT status FROM transactions WHERE public_id = ? FOR UPDATE", publicID).Scan(&current)
	if err == sql.ErrNoRows {
		return errs.E(errs.NotFound, "transaction not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock transaction: %w", err)
	}
	if current == to {
		return nil
	}
	if !current.CanTransition(to) {
		return errs.E(errs.InvalidState, fmt.Sprintf("illegal transaction transition %s -> %s", current, to))
	}

	args = append(args, publicID)
	_, err = l.q.ExecContext(ctx,
		"UPDATE transactions SET status = '"+string(to)+"', "+set+", updated_at = NOW() WHERE public_id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

func (l sqlLedger) MarkSuccessful(ctx context.Context, publicID, bankReference string) error {
	return l.transition(ctx, publicID, models.TransactionStatusSuccessful,
		"bank_reference = ?", bankReference)
}

func (l sqlLedger) MarkFailed(ctx context.Context, publicID, reason string) error {
	return l.transition(ctx, publicID, models.TransactionStatusFailed,
		"failure_reason = ?", reason)
}

func (l sqlLedger) MarkRefunded(ctx context.Context, publicID string) error {
	var t models.Transaction
	err := l.q.QueryRowContext(ctx,
		"SELECT type, status, refunded FROM transactions WHERE public_id = ? FOR UPDATE",
		publicID).Scan(&t.Type, &t.Status, &t.Refunded)
	if err == sql.ErrNoRows {
		return errs.E(errs.NotFound, "transaction not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock transaction: %w", err)
	}
	if !t.Refundable() {
		return errs.E(errs.InvalidState, "transaction already refunded or not refundable")
	}

	_, err = l.q.ExecContext(ctx,
		"UPDATE transactions SET refunded = TRUE, updated_at = NOW() WHERE public_id = ?", publicID)
	if err != nil {
		return fmt.Errorf("failed to mark transaction refunded: %w", err)
	}
	return nil
}

func (l sqlLedger) GetByPublicID(ctx context.Context, publicID string) (*models.Transaction, error) {
	return scanTxn(l.q.QueryRowContext(ctx,
		"SELECT "+txnColumns+" FROM transactions WHERE public_id = ?", publicID))
}

func (l sqlLedger) list(ctx context.Context, where string, args ...any) ([]*models.Transaction, error) {
	rows, err := l.q.QueryContext(ctx,
		"SELECT "+txnColumns+" FROM transactions WHERE "+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (l sqlLedger) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	return l.list(ctx, "user_id = ?", userID, limit, offset)
}

func (l sqlLedger) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error) {
	return l.list(ctx, "account_id = ?", accountID, limit, offset)
}

func (l sqlLedger) SumSuccessful(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := l.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type = 'debit' THEN -amount ELSE amount END), 0)
		 FROM transactions
		 WHERE account_id = ? AND status = 'successful' AND is_demo = FALSE`,
		accountID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("database error: %w", err)
	}
	return sum, nil
}

type sqlRequests struct {
	q querier
}

const requestColumns = `id, public_id, from_user_id, to_user_id, from_upi, to_upi, amount, note,
	status, expires_at, responded_at, rejection_reason, created_at`

func scanRequest(row rowScanner) (*models.MoneyRequest, error) {
	var r models.MoneyRequest
	var responded sql.NullTime
	err := row.Scan(
		&r.ID, &r.PublicID, &r.FromUserID, &r.ToUserID, &r.FromUPI, &r.ToUPI,
		&r.Amount, &r.Note, &r.Status, &r.ExpiresAt, &responded,
		&r.RejectionReason, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "money request not found")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if responded.Valid {
		r.RespondedAt = &responded.Time
	}
	return &r, nil
}

func (s sqlRequests) Create(ctx context.Context, req *models.MoneyRequest) error {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO money_requests
		(public_id, from_user_id, to_user_id, from_upi, to_upi, amount, note, status, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.PublicID, req.FromUserID, req.ToUserID, req.FromUPI, req.ToUPI,
		req.Amount, req.Note, req.Status, req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create money request: %w", err)
	}
	req.ID, err = result.LastInsertId()
	return err
}

func (s sqlRequests) GetByPublicID(ctx context.Context, publicID string) (*models.MoneyRequest, error) {
	return scanRequest(s.q.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM money_requests WHERE public_id = ?", publicID))
}

func (s sqlRequests) HasPendingDuplicate(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, now time.Time) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM money_requests
			WHERE from_user_id = ? AND to_user_id = ? AND amount = ?
			  AND status = 'pending' AND expires_at > ?)`,
		fromUserID, toUserID, amount, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return exists, nil
}

func (s sqlRequests) UpdateStatus(ctx context.Context, publicID string, from, to models.RequestStatus, respondedAt time.Time, reason string) error {
	var current models.RequestStatus
	err := s.q.QueryRowContext(ctx,
		"SELECT status FROM money_requests WHERE public_id = ? FOR UPDATE", publicID).Scan(&current)
	if err == sql.ErrNoRows {
		return errs.E(errs.NotFound, "money request not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock money request: %w", err)
	}
	if current != from || !from.CanTransition(to) {
		return errs.E(errs.InvalidState, fmt.Sprintf("illegal request transition %s -> %s", current, to))
	}

	_, err = s.q.ExecContext(ctx,
		"UPDATE money_requests SET status = ?, responded_at = ?, rejection_reason = ? WHERE public_id = ?",
		to, respondedAt, reason, publicID,
	)
	if err != nil {
		return fmt.Errorf("failed to update money request: %w", err)
	}
	return nil
}

func (s sqlRequests) ListForUser(ctx context.Context, userID int64, direction string, limit int) ([]*models.MoneyRequest, error) {
	where := "from_user_id = ? OR to_user_id = ?"
	args := []any{userID, userID}
	switch direction {
	case "sent":
		where = "from_user_id = ?"
		args = []any{userID}
	case "received":
		where = "to_user_id = ?"
		args = []any{userID}
	}
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM money_requests WHERE "+where+" ORDER BY created_at DESC LIMIT ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var requests []*models.MoneyRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

type sqlUsers struct {
	q querier
}

const userColumns = "id, name, email, password_hash, upi_handle, upi_pin_hash, created_at, updated_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.UPIHandle, &u.UPIPinHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &u, nil
}

func (s sqlUsers) Create(ctx context.Context, user *models.User) error {
	result, err := s.q.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)",
		user.Name, user.Email, user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID, err = result.LastInsertId()
	return err
}

func (s sqlUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(s.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s sqlUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (s sqlUsers) GetByUPI(ctx context.Context, handle string) (*models.User, error) {
	return scanUser(s.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE upi_handle = ?", handle))
}

func (s sqlUsers) SetUPI(ctx context.Context, userID int64, handle, pinHash string) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE users SET upi_handle = ?, upi_pin_hash = ?, updated_at = NOW() WHERE id = ?",
		handle, pinHash, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set UPI handle: %w", err)
	}
	return nil
}

func (s sqlUsers) SetPINHash(ctx context.Context, userID int64, pinHash string) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE users SET upi_pin_hash = ?, updated_at = NOW() WHERE id = ?",
		pinHash, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set PIN: %w", err)
	}
	return nil
}

func (s sqlUsers) ResolveAPIKey(ctx context.Context, key, merchantID string) (*models.User, error) {
	var userID int64
	err := s.q.QueryRowContext(ctx,
		"SELECT user_id FROM api_keys WHERE api_key = ? AND merchant_id = ? AND is_active = TRUE",
		key, merchantID,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.Unauthorized, "invalid API credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return s.GetByID(ctx, userID)
}

func (s sqlUsers) VerifiedBankAccount(ctx context.Context, userID int64) (*models.BankAccount, error) {
	var b models.BankAccount
	err := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, account_number, bank_name, is_verified, is_active, created_at
		 FROM bank_accounts
		 WHERE user_id = ? AND is_verified = TRUE AND is_active = TRUE
		 ORDER BY id LIMIT 1`,
		userID,
	).Scan(&b.ID, &b.UserID, &b.AccountNumber, &b.BankName, &b.IsVerified, &b.IsActive, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "no verified bank account linked")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &b, nil
}
