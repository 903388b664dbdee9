package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"

	"github.com/shopspring/decimal"
)

func TestMoneyRequestLifecycleApprove(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, aliceAcc := e.addUser(t, "Alice", "alice@digibank", "100.00")
	bob, bobAcc := e.addUser(t, "Bob", "bob@digibank", "500.00")

	request, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "bob@digibank",
		Amount:    decimal.RequireFromString("150.00"),
		Note:      "rent share",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if request.Status != models.RequestStatusPending {
		t.Fatalf("status = %s, want pending", request.Status)
	}
	if want := time.Now().Add(models.RequestTTL); request.ExpiresAt.Sub(want) > time.Minute || want.Sub(request.ExpiresAt) > time.Minute {
		t.Fatalf("expires_at = %v, want about 24h from now", request.ExpiresAt)
	}

	result, err := e.requests.Respond(ctx, bob.ID, request.PublicID, models.RespondRequest{
		Action: models.RequestActionApprove,
		PIN:    testPIN,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Status != models.RequestStatusApproved {
		t.Fatalf("status = %s, want approved", result.Status)
	}
	if result.Payment == nil {
		t.Fatal("approval did not carry the payment result")
	}

	// Money moved from Bob (payer) to Alice (requester).
	e.mustEqual(t, e.balance(t, bobAcc.ID), "350.00")
	e.mustEqual(t, e.balance(t, aliceAcc.ID), "250.00")

	stored, _ := e.st.Requests().GetByPublicID(ctx, request.PublicID)
	if stored.Status != models.RequestStatusApproved {
		t.Fatalf("stored status = %s, want approved", stored.Status)
	}
}

func TestMoneyRequestReject(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "0")
	bob, bobAcc := e.addUser(t, "Bob", "bob@digibank", "500.00")

	request, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "bob@digibank",
		Amount:    decimal.RequireFromString("50.00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.requests.Respond(ctx, bob.ID, request.PublicID, models.RespondRequest{
		Action: models.RequestActionReject,
		Reason: "unknown charge",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.RequestStatusRejected {
		t.Fatalf("status = %s, want rejected", result.Status)
	}
	e.mustEqual(t, e.balance(t, bobAcc.ID), "500.00")

	stored, _ := e.st.Requests().GetByPublicID(ctx, request.PublicID)
	if stored.RejectionReason != "unknown charge" {
		t.Fatalf("reason = %q", stored.RejectionReason)
	}
}

func TestMoneyRequestOnlyTargetMayRespond(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "0")
	e.addUser(t, "Bob", "bob@digibank", "500.00")
	carol, _ := e.addUser(t, "Carol", "carol@digibank", "500.00")

	request, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "bob@digibank",
		Amount:    decimal.RequireFromString("50.00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.requests.Respond(ctx, carol.ID, request.PublicID, models.RespondRequest{
		Action: models.RequestActionApprove,
		PIN:    testPIN,
	})
	if errs.KindOf(err) != errs.Forbidden {
		t.Fatalf("err = %v, want Forbidden", err)
	}
}

func TestMoneyRequestDuplicatePendingRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "0")
	e.addUser(t, "Bob", "bob@digibank", "500.00")

	amount := decimal.RequireFromString("75.00")
	if _, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{TargetUPI: "bob@digibank", Amount: amount}); err != nil {
		t.Fatal(err)
	}
	_, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{TargetUPI: "bob@digibank", Amount: amount})
	if errs.KindOf(err) != errs.InvalidState {
		t.Fatalf("err = %v, want InvalidState", err)
	}

	// A different amount to the same user is allowed.
	if _, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "bob@digibank",
		Amount:    decimal.RequireFromString("76.00"),
	}); err != nil {
		t.Fatalf("different amount should pass: %v", err)
	}
}

func TestMoneyRequestSelfRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "100.00")

	_, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "alice@digibank",
		Amount:    decimal.RequireFromString("10.00"),
	})
	if errs.KindOf(err) != errs.InvalidInput {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
}

func TestMoneyRequestExpiry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "0")
	bob, bobAcc := e.addUser(t, "Bob", "bob@digibank", "500.00")

	request, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "bob@digibank",
		Amount:    decimal.RequireFromString("50.00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Shift the service clock past the 24h horizon.
	e.requests.now = func() time.Time { return time.Now().Add(models.RequestTTL + time.Hour) }

	listed, err := e.requests.List(ctx, alice.ID, "sent", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Status != models.RequestStatusExpired {
		t.Fatalf("listed status = %v, want expired", listed)
	}

	_, err = e.requests.Respond(ctx, bob.ID, request.PublicID, models.RespondRequest{
		Action: models.RequestActionApprove,
		PIN:    testPIN,
	})
	if errs.KindOf(err) != errs.InvalidState {
		t.Fatalf("err = %v, want InvalidState", err)
	}
	e.mustEqual(t, e.balance(t, bobAcc.ID), "500.00")

	// The stored row caught up with the clock.
	stored, _ := e.st.Requests().GetByPublicID(ctx, request.PublicID)
	if stored.Status != models.RequestStatusExpired {
		t.Fatalf("stored status = %s, want expired", stored.Status)
	}
}

func TestMoneyRequestConcurrentApprovalPaysOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, aliceAcc := e.addUser(t, "Alice", "alice@digibank", "200.00")
	bob, bobAcc := e.addUser(t, "Bob", "bob@digibank", "800.00")

	request, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "bob@digibank",
		Amount:    decimal.RequireFromString("200.00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Hold both responders until each has passed the pending check, so
	// they race into the approval itself.
	var gate sync.WaitGroup
	gate.Add(2)
	e.requests.now = func() time.Time {
		gate.Done()
		gate.Wait()
		return time.Now()
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := e.requests.Respond(ctx, bob.ID, request.PublicID, models.RespondRequest{
				Action: models.RequestActionApprove,
				PIN:    testPIN,
			})
			results <- err
		}()
	}

	var rejected int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			if errs.KindOf(err) != errs.InvalidState {
				t.Fatalf("losing approval err = %v, want InvalidState", err)
			}
			rejected++
		}
	}
	if rejected != 1 {
		t.Fatalf("%d approvals rejected, want exactly 1", rejected)
	}

	// The money moved exactly once.
	e.mustEqual(t, e.balance(t, aliceAcc.ID), "400.00")
	e.mustEqual(t, e.balance(t, bobAcc.ID), "600.00")

	stored, _ := e.st.Requests().GetByPublicID(ctx, request.PublicID)
	if stored.Status != models.RequestStatusApproved {
		t.Fatalf("stored status = %s, want approved", stored.Status)
	}
}

func TestMoneyRequestApprovePaymentFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "0")
	bob, bobAcc := e.addUser(t, "Bob", "bob@digibank", "30.00")

	request, err := e.requests.Send(ctx, alice.ID, models.MoneyRequestCreate{
		TargetUPI: "bob@digibank",
		Amount:    decimal.RequireFromString("50.00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Bob cannot cover the request.
	_, err = e.requests.Respond(ctx, bob.ID, request.PublicID, models.RespondRequest{
		Action: models.RequestActionApprove,
		PIN:    testPIN,
	})
	if errs.KindOf(err) != errs.InsufficientFunds {
		t.Fatalf("err = %v, want InsufficientFunds", err)
	}

	e.mustEqual(t, e.balance(t, bobAcc.ID), "30.00")
	stored, _ := e.st.Requests().GetByPublicID(ctx, request.PublicID)
	if stored.Status != models.RequestStatusPending {
		t.Fatalf("stored status = %s, want pending after failed payment", stored.Status)
	}
}
