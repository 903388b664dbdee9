package services

import (
	"context"
	"testing"

	"digibank/internal/errs"
	"digibank/internal/models"
	"digibank/internal/store"

	"github.com/rs/zerolog"
)

func newIdentityEnv(t *testing.T) (*IdentityService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewIdentityService(st, "test-secret", zerolog.Nop()), st
}

func TestRegisterCreatesFundedAccount(t *testing.T) {
	ctx := context.Background()
	identity, st := newIdentityEnv(t)

	resp, err := identity.Register(ctx, models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("missing token")
	}

	account, err := st.Accounts().PrimaryForUser(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("primary account: %v", err)
	}
	if !account.Balance.Equal(openingBalance) {
		t.Fatalf("balance = %s, want %s", account.Balance, openingBalance)
	}

	// The opening deposit is on the ledger, so reconciliation holds from
	// the first day.
	sum, err := st.Ledger().SumSuccessful(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Equal(openingBalance) {
		t.Fatalf("ledger sum = %s, want %s", sum, openingBalance)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	identity, _ := newIdentityEnv(t)

	cases := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"missing fields", models.RegisterRequest{Name: "Alice"}},
		{"bad email", models.RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "correct horse"}},
		{"short password", models.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "short"}},
	}
	for _, c := range cases {
		if _, err := identity.Register(ctx, c.req); errs.KindOf(err) != errs.InvalidInput {
			t.Errorf("%s: err = %v, want InvalidInput", c.name, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	identity, _ := newIdentityEnv(t)

	req := models.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse"}
	if _, err := identity.Register(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := identity.Register(ctx, req); errs.KindOf(err) != errs.InvalidInput {
		t.Fatalf("duplicate email err = %v, want InvalidInput", err)
	}
}

func TestLoginAndTokenRoundtrip(t *testing.T) {
	ctx := context.Background()
	identity, _ := newIdentityEnv(t)

	if _, err := identity.Register(ctx, models.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := identity.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := identity.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != resp.User.ID || claims.Email != "alice@example.com" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := identity.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "wrong"}); errs.KindOf(err) != errs.Unauthorized {
		t.Fatalf("wrong password err = %v, want Unauthorized", err)
	}

	other := NewIdentityService(store.NewMemoryStore(), "other-secret", zerolog.Nop())
	if _, err := other.ValidateToken(resp.Token); errs.KindOf(err) != errs.Unauthorized {
		t.Fatalf("foreign-key token err = %v, want Unauthorized", err)
	}
}
