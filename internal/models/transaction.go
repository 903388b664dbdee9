package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeRefund TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusSuccessful TransactionStatus = "successful"
	TransactionStatusFailed     TransactionStatus = "failed"
)

// transactionTransitions is the single place that defines which status
// changes are legal. Anything absent here is rejected.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {TransactionStatusSuccessful, TransactionStatusFailed},
}

// CanTransition reports whether moving from s to next is a legal status
// change. A transition onto the current status is allowed so that retried
// terminal updates stay idempotent.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return len(transactionTransitions[s]) == 0
}

type TransferType string

const (
	TransferTypeIMPS TransferType = "IMPS"
	TransferTypeNEFT TransferType = "NEFT"
	TransferTypeRTGS TransferType = "RTGS"
	TransferTypeUPI  TransferType = "UPI"
)

func (t TransferType) Valid() bool {
	switch t {
	case TransferTypeIMPS, TransferTypeNEFT, TransferTypeRTGS, TransferTypeUPI:
		return true
	}
	return false
}

// Transaction is one immutable ledger entry. Once successful the only
// permitted mutation is a single refunded-flag flip.
type Transaction struct {
	ID        int64             `json:"-"`
	PublicID  string            `json:"transaction_id"`
	AccountID int64             `json:"account_id"`
	UserID    int64             `json:"user_id"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	Remark    string            `json:"remark,omitempty"`

	// Counterparty metadata for paired entries.
	SenderUPI           string       `json:"sender_upi,omitempty"`
	RecipientUPI        string       `json:"recipient_upi,omitempty"`
	TransferID          string       `json:"transfer_id,omitempty"`
	TransferType        TransferType `json:"transfer_type,omitempty"`
	CounterpartyAccount string       `json:"counterparty_account,omitempty"`

	// External settlement correlation.
	BankReference string `json:"bank_reference,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	// Refund linkage: a refund entry points back at the original.
	OriginalPublicID string `json:"original_transaction_id,omitempty"`
	Refunded         bool   `json:"refunded"`

	IsDemo    bool      `json:"is_demo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Refundable reports whether this entry may be reversed: a successful,
// not-yet-refunded debit or credit. Refund entries and reversal entries
// point at an original and are never themselves reversible.
func (t *Transaction) Refundable() bool {
	return (t.Type == TransactionTypeDebit || t.Type == TransactionTypeCredit) &&
		t.Status == TransactionStatusSuccessful &&
		!t.Refunded &&
		t.OriginalPublicID == ""
}
