package models

import "testing"

func TestTransactionStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{TransactionStatusPending, TransactionStatusSuccessful, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusSuccessful, TransactionStatusFailed, false},
		{TransactionStatusFailed, TransactionStatusSuccessful, false},
		{TransactionStatusSuccessful, TransactionStatusPending, false},
		// Repeating the current status is an idempotent no-op.
		{TransactionStatusSuccessful, TransactionStatusSuccessful, true},
		{TransactionStatusFailed, TransactionStatusFailed, true},
	}

	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTransactionStatusTerminal(t *testing.T) {
	if TransactionStatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	if !TransactionStatusSuccessful.Terminal() {
		t.Error("successful should be terminal")
	}
	if !TransactionStatusFailed.Terminal() {
		t.Error("failed should be terminal")
	}
}

func TestRefundable(t *testing.T) {
	cases := []struct {
		name string
		txn  Transaction
		want bool
	}{
		{"successful debit", Transaction{Type: TransactionTypeDebit, Status: TransactionStatusSuccessful}, true},
		{"successful credit", Transaction{Type: TransactionTypeCredit, Status: TransactionStatusSuccessful}, true},
		{"pending debit", Transaction{Type: TransactionTypeDebit, Status: TransactionStatusPending}, false},
		{"failed debit", Transaction{Type: TransactionTypeDebit, Status: TransactionStatusFailed}, false},
		{"already refunded", Transaction{Type: TransactionTypeDebit, Status: TransactionStatusSuccessful, Refunded: true}, false},
		{"refund entry", Transaction{Type: TransactionTypeRefund, Status: TransactionStatusSuccessful}, false},
		{"reversal entry", Transaction{Type: TransactionTypeDebit, Status: TransactionStatusSuccessful, OriginalPublicID: "txn_orig"}, false},
	}

	for _, c := range cases {
		if got := c.txn.Refundable(); got != c.want {
			t.Errorf("%s: Refundable() = %v, want %v", c.name, got, c.want)
		}
	}
}
