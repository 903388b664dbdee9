package services

import (
	"context"
	"fmt"
	"testing"

	"digibank/internal/cache"
	"digibank/internal/models"
	"digibank/internal/notify"
	"digibank/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const testPIN = "1234"

type env struct {
	st       *store.MemoryStore
	otps     *cache.MemoryStore
	creds    *CredentialGate
	payments *PaymentService
	refunds  *RefundService
	requests *MoneyRequestService
	gateway  *GatewayService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	otps := cache.NewMemoryStore()
	logger := zerolog.Nop()
	dispatcher := notify.NopDispatcher{}
	settle := StaticSettlementGateway{Succeed: true}

	creds := NewCredentialGate(st, otps, dispatcher, logger)
	payments := NewPaymentService(st, creds, settle, dispatcher, logger)

	return &env{
		st:       st,
		otps:     otps,
		creds:    creds,
		payments: payments,
		refunds:  NewRefundService(st, dispatcher, logger),
		requests: NewMoneyRequestService(st, payments, dispatcher, logger),
		gateway:  NewGatewayService(st, settle, "test-webhook-secret", logger),
	}
}

func (e *env) failSettlement(message string) {
	e.payments.settle = StaticSettlementGateway{Succeed: false, Message: message}
	e.gateway.settle = StaticSettlementGateway{Succeed: false, Message: message}
}

var userSeq int

// addUser seeds a user with a funded primary account. The opening
// balance is backed by a successful credit entry so ledger sums match.
func (e *env) addUser(t *testing.T, name, handle, balance string) (*models.User, *models.Account) {
	t.Helper()
	ctx := context.Background()
	userSeq++

	user := &models.User{
		Name:  name,
		Email: fmt.Sprintf("user%d@example.com", userSeq),
	}
	if err := e.st.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if handle != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		if err := e.st.Users().SetUPI(ctx, user.ID, handle, string(hash)); err != nil {
			t.Fatalf("set upi: %v", err)
		}
		user.UPIHandle = handle
	}

	amount := decimal.RequireFromString(balance)
	acc := &models.Account{
		UserID:        user.ID,
		AccountNumber: fmt.Sprintf("%012d", userSeq),
		Kind:          models.AccountKindSavings,
		Currency:      "INR",
		Balance:       amount,
	}
	if err := e.st.Accounts().Create(ctx, acc); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if amount.IsPositive() {
		opening := &models.Transaction{
			PublicID:  fmt.Sprintf("txn_opening_%d", userSeq),
			AccountID: acc.ID,
			UserID:    user.ID,
			Amount:    amount,
			Currency:  "INR",
			Type:      models.TransactionTypeCredit,
			Remark:    "Opening balance",
		}
		if err := e.st.Ledger().RecordPending(ctx, opening); err != nil {
			t.Fatal(err)
		}
		if err := e.st.Ledger().MarkSuccessful(ctx, opening.PublicID, ""); err != nil {
			t.Fatal(err)
		}
	}
	return user, acc
}

func (e *env) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	acc, err := e.st.Accounts().Get(context.Background(), accountID)
	if err != nil {
		t.Fatal(err)
	}
	return acc.Balance
}

func (e *env) mustEqual(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("amount = %s, want %s", got, want)
	}
}
