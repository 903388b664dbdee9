package store

import (
	"context"
	"time"

	"digibank/internal/models"

	"github.com/shopspring/decimal"
)

// Session is the data-access surface visible inside (or outside) a unit
// of work. Every accessor returned from one Session is bound to the same
// underlying transaction scope.
type Session interface {
	Accounts() AccountStore
	Ledger() Ledger
	Requests() RequestStore
	Users() UserStore
}

// Store is a Session that can also open an atomic unit of work. All
// mutations performed through the Session passed to fn commit together or
// not at all.
type Store interface {
	Session
	Do(ctx context.Context, fn func(Session) error) error
}

type AccountStore interface {
	Get(ctx context.Context, id int64) (*models.Account, error)
	GetByNumber(ctx context.Context, number string) (*models.Account, error)
	// PrimaryForUser returns the user's primary (oldest) account.
	PrimaryForUser(ctx context.Context, userID int64) (*models.Account, error)
	Create(ctx context.Context, acc *models.Account) error
	// AdjustBalance applies delta (negative for a debit) to the account
	// balance. The overdraft check and the write happen as one atomic
	// step; a concurrent adjuster can never observe the window between
	// them. Returns InsufficientFunds when balance+delta < 0.
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.Account, error)
}

type Ledger interface {
	// RecordPending writes an unsuccessful placeholder entry before any
	// balance mutation is attempted.
	RecordPending(ctx context.Context, txn *models.Transaction) error
	// MarkSuccessful and MarkFailed are terminal and idempotent: a repeat
	// call with the same target status is a no-op, a cross transition
	// between terminal states is InvalidState.
	MarkSuccessful(ctx context.Context, publicID, bankReference string) error
	MarkFailed(ctx context.Context, publicID, reason string) error
	// MarkRefunded flips the refunded flag exactly once; calling it on a
	// non-successful, non-debit or already refunded entry is InvalidState.
	MarkRefunded(ctx context.Context, publicID string) error
	GetByPublicID(ctx context.Context, publicID string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error)
	// SumSuccessful returns credits+refunds minus debits over successful,
	// non-demo entries for the account.
	SumSuccessful(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

type RequestStore interface {
	Create(ctx context.Context, req *models.MoneyRequest) error
	GetByPublicID(ctx context.Context, publicID string) (*models.MoneyRequest, error)
	// HasPendingDuplicate reports an unexpired pending request with the
	// same requester, target and amount.
	HasPendingDuplicate(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, now time.Time) (bool, error)
	// UpdateStatus performs the from→to transition, rejecting it with
	// InvalidState when the stored status is not from or the transition
	// is not in the table.
	UpdateStatus(ctx context.Context, publicID string, from, to models.RequestStatus, respondedAt time.Time, reason string) error
	ListForUser(ctx context.Context, userID int64, direction string, limit int) ([]*models.MoneyRequest, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUPI(ctx context.Context, handle string) (*models.User, error)
	SetUPI(ctx context.Context, userID int64, handle, pinHash string) error
	SetPINHash(ctx context.Context, userID int64, pinHash string) error
	// ResolveAPIKey returns the user behind an active merchant credential.
	ResolveAPIKey(ctx context.Context, key, merchantID string) (*models.User, error)
	// VerifiedBankAccount returns the user's verified and active linked
	// bank account, or NotFound.
	VerifiedBankAccount(ctx context.Context, userID int64) (*models.BankAccount, error)
}
