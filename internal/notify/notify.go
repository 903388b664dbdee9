package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventPaymentCompleted  EventType = "payment.completed"
	EventTransferCompleted EventType = "transfer.completed"
	EventRechargeCompleted EventType = "recharge.completed"
	EventRefundCompleted   EventType = "refund.completed"
	EventMoneyRequested    EventType = "request.created"
	EventPinResetOTP       EventType = "pin.reset_otp"
)

// Event is what the core hands to the out-of-band delivery side. Bodies
// (email/SMS templates) are the consumer's problem, not ours.
type Event struct {
	Type          EventType `json:"event"`
	UserID        int64     `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Dispatcher delivers events best-effort. A failed dispatch must never
// unwind a committed transaction; callers log the error and move on.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// NATSDispatcher publishes events to a NATS subject per event type.
type NATSDispatcher struct {
	nc     *nats.Conn
	prefix string
	logger zerolog.Logger
}

func NewNATSDispatcher(nc *nats.Conn, prefix string, logger zerolog.Logger) *NATSDispatcher {
	if prefix == "" {
		prefix = "digibank.events"
	}
	return &NATSDispatcher{nc: nc, prefix: prefix, logger: logger}
}

func (d *NATSDispatcher) Dispatch(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return d.nc.Publish(d.prefix+"."+string(ev.Type), payload)
}

// NopDispatcher is used when no broker is configured.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(ctx context.Context, ev Event) error { return nil }
