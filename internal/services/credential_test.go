package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"digibank/internal/errs"
	"digibank/internal/notify"
)

// captureDispatcher keeps dispatched events for inspection.
type captureDispatcher struct {
	events []notify.Event
}

func (d *captureDispatcher) Dispatch(ctx context.Context, ev notify.Event) error {
	d.events = append(d.events, ev)
	return nil
}

func TestRegisterUPIAndVerify(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "", "0")

	if err := e.creds.RegisterUPI(ctx, alice.ID, "alice@digibank", "4321"); err != nil {
		t.Fatalf("RegisterUPI: %v", err)
	}

	if err := e.creds.Verify(ctx, alice.ID, "4321"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := e.creds.Verify(ctx, alice.ID, "0000"); errs.KindOf(err) != errs.Unauthorized {
		t.Fatalf("wrong PIN err = %v, want Unauthorized", err)
	}
}

func TestRegisterUPIValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice, _ := e.addUser(t, "Alice", "", "0")
	e.addUser(t, "Bob", "bob@digibank", "0")

	cases := []struct {
		name, handle, pin string
	}{
		{"wrong suffix", "alice@otherbank", "1234"},
		{"too short username", "a@digibank", "1234"},
		{"bad pin length", "alice@digibank", "12345"},
		{"non-numeric pin", "alice@digibank", "abcd"},
		{"taken handle", "bob@digibank", "1234"},
	}
	for _, c := range cases {
		if err := e.creds.RegisterUPI(ctx, alice.ID, c.handle, c.pin); errs.KindOf(err) != errs.InvalidInput {
			t.Errorf("%s: err = %v, want InvalidInput", c.name, err)
		}
	}

	// Six digit PINs are fine.
	if err := e.creds.RegisterUPI(ctx, alice.ID, "alice@digibank", "123456"); err != nil {
		t.Fatalf("6-digit PIN: %v", err)
	}
}

func TestPINResetOTPFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	capture := &captureDispatcher{}
	e.creds.dispatcher = capture
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "0")

	if err := e.creds.SendResetOTP(ctx, alice.ID); err != nil {
		t.Fatalf("SendResetOTP: %v", err)
	}
	if len(capture.events) != 1 || capture.events[0].Type != notify.EventPinResetOTP {
		t.Fatalf("dispatched events = %v", capture.events)
	}
	otp := capture.events[0].Detail
	if n, err := strconv.Atoi(otp); err != nil || n < 100000 || n > 999999 {
		t.Fatalf("OTP = %q, want a 6-digit code", otp)
	}

	if err := e.creds.ResetPIN(ctx, alice.ID, "000000", "5678"); errs.KindOf(err) != errs.Unauthorized {
		t.Fatalf("wrong OTP err = %v, want Unauthorized", err)
	}

	if err := e.creds.ResetPIN(ctx, alice.ID, otp, "5678"); err != nil {
		t.Fatalf("ResetPIN: %v", err)
	}
	if err := e.creds.Verify(ctx, alice.ID, "5678"); err != nil {
		t.Fatalf("Verify after reset: %v", err)
	}

	// The code is single use.
	if err := e.creds.ResetPIN(ctx, alice.ID, otp, "9999"); errs.KindOf(err) != errs.InvalidState {
		t.Fatalf("reused OTP err = %v, want InvalidState", err)
	}
}

func TestPINResetOTPExpires(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	capture := &captureDispatcher{}
	e.creds.dispatcher = capture
	alice, _ := e.addUser(t, "Alice", "alice@digibank", "0")

	if err := e.creds.SendResetOTP(ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	otp := capture.events[0].Detail

	// Force the cached entry past its horizon.
	e.otps.Put("upi_pin_otp:"+strconv.FormatInt(alice.ID, 10), otp, -time.Second)

	if err := e.creds.ResetPIN(ctx, alice.ID, otp, "5678"); errs.KindOf(err) != errs.InvalidState {
		t.Fatalf("expired OTP err = %v, want InvalidState", err)
	}
}

func TestValidateHandle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, "Bob", "bob@digibank", "0")

	user, err := e.creds.ValidateHandle(ctx, "bob@digibank")
	if err != nil {
		t.Fatalf("ValidateHandle: %v", err)
	}
	if user.Name != "Bob" {
		t.Fatalf("name = %q, want Bob", user.Name)
	}

	if _, err := e.creds.ValidateHandle(ctx, "ghost@digibank"); errs.KindOf(err) != errs.NotFound {
		t.Fatalf("unknown handle err = %v, want NotFound", err)
	}
	if _, err := e.creds.ValidateHandle(ctx, "bad handle"); errs.KindOf(err) != errs.InvalidInput {
		t.Fatalf("bad format err = %v, want InvalidInput", err)
	}
}
