package services

import (
	"context"
	"testing"

	"digibank/internal/errs"
	"digibank/internal/models"

	"github.com/shopspring/decimal"
)

// rechargeFor runs a successful real-mode recharge and returns its id.
func rechargeFor(t *testing.T, e *env, userID int64, amount string) string {
	t.Helper()
	result, err := e.payments.Recharge(context.Background(), userID, models.RechargeRequest{
		TargetIdentifier: "9876543210",
		Operator:         "Airtel",
		Amount:           decimal.RequireFromString(amount),
		Mode:             models.RechargeModeReal,
	})
	if err != nil {
		t.Fatalf("recharge: %v", err)
	}
	return result.TransactionID
}

func TestRefundRestoresBalanceOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, aliceAcc := e.addUser(t, "Alice", "alice@digibank", "500.00")
	txnID := rechargeFor(t, e, alice.ID, "199.00")
	e.mustEqual(t, e.balance(t, aliceAcc.ID), "301.00")

	result, err := e.refunds.Refund(ctx, txnID, models.RefundRequest{Reason: "operator reversal"})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	e.mustEqual(t, result.Amount, "199.00")
	e.mustEqual(t, e.balance(t, aliceAcc.ID), "500.00")

	refund, err := e.st.Ledger().GetByPublicID(ctx, result.RefundTransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if refund.Type != models.TransactionTypeRefund {
		t.Fatalf("refund entry type = %s", refund.Type)
	}
	if refund.OriginalPublicID != txnID {
		t.Fatalf("refund linkage = %q, want %q", refund.OriginalPublicID, txnID)
	}

	original, _ := e.st.Ledger().GetByPublicID(ctx, txnID)
	if !original.Refunded {
		t.Fatal("original not flagged refunded")
	}

	// Second attempt must fail and not move money again.
	if _, err := e.refunds.Refund(ctx, txnID, models.RefundRequest{}); errs.KindOf(err) != errs.InvalidState {
		t.Fatalf("second refund err = %v, want InvalidState", err)
	}
	e.mustEqual(t, e.balance(t, aliceAcc.ID), "500.00")
}

func TestPartialRefund(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, aliceAcc := e.addUser(t, "Alice", "alice@digibank", "500.00")
	txnID := rechargeFor(t, e, alice.ID, "200.00")

	partial := decimal.RequireFromString("80.00")
	result, err := e.refunds.Refund(ctx, txnID, models.RefundRequest{Amount: &partial})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	e.mustEqual(t, result.Amount, "80.00")
	e.mustEqual(t, e.balance(t, aliceAcc.ID), "380.00")
}

func TestRefundCannotExceedOriginal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "500.00")
	txnID := rechargeFor(t, e, alice.ID, "100.00")

	tooMuch := decimal.RequireFromString("100.01")
	if _, err := e.refunds.Refund(ctx, txnID, models.RefundRequest{Amount: &tooMuch}); errs.KindOf(err) != errs.InvalidInput {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}

func TestRefundRejectsNonDebit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "500.00")
	_, bobAcc := e.addUser(t, "Bob", "bob@digibank", "0")

	if _, err := e.payments.Pay(ctx, alice.ID, models.PayRequest{
		RecipientUPI: "bob@digibank",
		Amount:       decimal.RequireFromString("50.00"),
		PIN:          testPIN,
	}); err != nil {
		t.Fatal(err)
	}

	// Find the credit leg on Bob's account and try to refund it.
	txns, _ := e.st.Ledger().ListByAccount(ctx, bobAcc.ID, 10, 0)
	if len(txns) == 0 || txns[0].Type != models.TransactionTypeCredit {
		t.Fatal("credit leg not found")
	}
	if _, err := e.refunds.Refund(ctx, txns[0].PublicID, models.RefundRequest{}); errs.KindOf(err) != errs.InvalidState {
		t.Fatalf("refunding a credit: err = %v, want InvalidState", err)
	}

	// A failed entry is not refundable either.
	e.failSettlement("declined")
	if _, err := e.payments.Recharge(ctx, alice.ID, models.RechargeRequest{
		TargetIdentifier: "9876543210",
		Amount:           decimal.RequireFromString("50.00"),
		Mode:             models.RechargeModeReal,
	}); err == nil {
		t.Fatal("expected settlement failure")
	}
	aliceTxns, _ := e.st.Ledger().ListByUser(ctx, alice.ID, 10, 0)
	failed := aliceTxns[0]
	if failed.Status != models.TransactionStatusFailed {
		t.Fatalf("newest entry status = %s, want failed", failed.Status)
	}
	if _, err := e.refunds.Refund(ctx, failed.PublicID, models.RefundRequest{}); errs.KindOf(err) != errs.InvalidState {
		t.Fatalf("refunding a failed entry: err = %v, want InvalidState", err)
	}
}

func TestReconcileMatchesLedger(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, aliceAcc := e.addUser(t, "Alice", "alice@digibank", "500.00")
	_, bobAcc := e.addUser(t, "Bob", "bob@digibank", "100.00")

	if _, err := e.payments.Pay(ctx, alice.ID, models.PayRequest{
		RecipientUPI: "bob@digibank",
		Amount:       decimal.RequireFromString("120.00"),
		PIN:          testPIN,
	}); err != nil {
		t.Fatal(err)
	}
	txnID := rechargeFor(t, e, alice.ID, "80.00")
	if _, err := e.refunds.Refund(ctx, txnID, models.RefundRequest{}); err != nil {
		t.Fatal(err)
	}

	for _, accID := range []int64{aliceAcc.ID, bobAcc.ID} {
		stored, computed, err := e.refunds.Reconcile(ctx, accID)
		if err != nil {
			t.Fatal(err)
		}
		if !stored.Equal(computed) {
			t.Fatalf("account %d: stored %s != ledger %s", accID, stored, computed)
		}
	}
}
