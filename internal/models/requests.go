package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayRequest struct {
	RecipientUPI string          `json:"recipient_handle"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note,omitempty"`
	PIN          string          `json:"pin"`
}

type PayResult struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	SenderUPI     string          `json:"sender_upi"`
	RecipientUPI  string          `json:"recipient_upi"`
	Timestamp     time.Time       `json:"timestamp"`
}

type TransferRequest struct {
	RecipientAccount string          `json:"recipient_account"`
	Amount           decimal.Decimal `json:"amount"`
	TransferType     TransferType    `json:"transfer_type"`
	Remark           string          `json:"remark,omitempty"`
	PIN              string          `json:"pin"`
}

type TransferResult struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

type RechargeMode string

const (
	RechargeModeDemo RechargeMode = "demo"
	RechargeModeReal RechargeMode = "real"
)

type RechargeRequest struct {
	TargetIdentifier string          `json:"target_identifier"`
	Operator         string          `json:"operator,omitempty"`
	BillType         string          `json:"bill_type,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Mode             RechargeMode    `json:"mode"`
}

type RechargeResult struct {
	TransactionID string           `json:"transaction_id"`
	Status        string           `json:"status"`
	IsDemo        bool             `json:"is_demo"`
	NewBalance    *decimal.Decimal `json:"new_balance,omitempty"`
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

type RefundResult struct {
	RefundTransactionID string          `json:"refund_transaction_id"`
	Status              string          `json:"status"`
	Amount              decimal.Decimal `json:"amount"`
}

type MoneyRequestCreate struct {
	TargetUPI string          `json:"target_handle"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
}

type RequestAction string

const (
	RequestActionApprove RequestAction = "approve"
	RequestActionReject  RequestAction = "reject"
)

type RespondRequest struct {
	Action RequestAction `json:"action"`
	PIN    string        `json:"pin,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

type RespondResult struct {
	Status  RequestStatus `json:"status"`
	Payment *PayResult    `json:"payment,omitempty"`
}

type GatewayCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type GatewayPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Customer    GatewayCustomer `json:"customer_info"`
	CallbackURL string          `json:"callback_url,omitempty"`
}

type GatewayPaymentResult struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BankReference string          `json:"bank_reference,omitempty"`
}

type CreateUPIRequest struct {
	Handle string `json:"upi_handle"`
	PIN    string `json:"pin"`
}

type ResetPINRequest struct {
	OTP    string `json:"otp"`
	NewPIN string `json:"new_pin"`
}
