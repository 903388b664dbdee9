package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountKindSavings AccountKind = "savings"
	AccountKindCurrent AccountKind = "current"
)

type Account struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	AccountNumber string          `json:"account_number"`
	Kind          AccountKind     `json:"kind"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BankAccount is an externally linked settlement account used by the
// merchant gateway path. Only verified and active accounts may settle.
type BankAccount struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name"`
	IsVerified    bool      `json:"is_verified"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
