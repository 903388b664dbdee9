package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusExpired  RequestStatus = "expired"
)

// requestTransitions: pending is the only non-terminal state.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending: {RequestStatusApproved, RequestStatusRejected, RequestStatusExpired},
}

func (s RequestStatus) CanTransition(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RequestStatus) Terminal() bool {
	return len(requestTransitions[s]) == 0
}

// RequestTTL is the approval window set at creation.
const RequestTTL = 24 * time.Hour

// MoneyRequest is a pull payment: from_user asks to_user to pay.
type MoneyRequest struct {
	ID              int64           `json:"-"`
	PublicID        string          `json:"request_id"`
	FromUserID      int64           `json:"from_user_id"`
	ToUserID        int64           `json:"to_user_id"`
	FromUPI         string          `json:"from_upi"`
	ToUPI           string          `json:"to_upi"`
	Amount          decimal.Decimal `json:"amount"`
	Note            string          `json:"note,omitempty"`
	Status          RequestStatus   `json:"status"`
	ExpiresAt       time.Time       `json:"expires_at"`
	RespondedAt     *time.Time      `json:"responded_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ExpiredAt reports whether the request is past its horizon at the given
// instant. The check is evaluated at read time so a stale stored "pending"
// never lets a response through after expiry.
func (r *MoneyRequest) ExpiredAt(now time.Time) bool {
	return r.Status == RequestStatusExpired ||
		(r.Status == RequestStatusPending && now.After(r.ExpiresAt))
}

// EffectiveStatus is the status a reader should see, with the expiry
// predicate applied.
func (r *MoneyRequest) EffectiveStatus(now time.Time) RequestStatus {
	if r.Status == RequestStatusPending && now.After(r.ExpiresAt) {
		return RequestStatusExpired
	}
	return r.Status
}
