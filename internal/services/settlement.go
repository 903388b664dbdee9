package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementRequest describes one external debit/credit confirmation
// attempt: a recharge with an operator, a bill payment, or a merchant
// gateway bank call.
type SettlementRequest struct {
	Reference string          `json:"reference"`
	Kind      string          `json:"kind"`
	Target    string          `json:"target"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type SettlementResult struct {
	Success   bool   `json:"success"`
	Reference string `json:"bank_reference"`
	Message   string `json:"message,omitempty"`
}

// SettlementGateway confirms a transaction with an external financial
// system. An error return means the attempt itself could not be made;
// a Result with Success=false means the counterparty declined.
type SettlementGateway interface {
	Attempt(ctx context.Context, req SettlementRequest) (SettlementResult, error)
}

// HTTPSettlementGateway posts settlement requests to a bank/operator API.
type HTTPSettlementGateway struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPSettlementGateway(url, apiKey string) *HTTPSettlementGateway {
	return &HTTPSettlementGateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *HTTPSettlementGateway) Attempt(ctx context.Context, req SettlementRequest) (SettlementResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SettlementResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return SettlementResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("settlement call failed: %w", err)
	}
	defer resp.Body.Close()

	var result SettlementResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SettlementResult{}, fmt.Errorf("invalid settlement response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		result.Success = false
	}
	return result, nil
}

// StaticSettlementGateway is the deterministic double used in tests and
// demo deployments with no upstream configured.
type StaticSettlementGateway struct {
	Succeed bool
	Message string
}

func (g StaticSettlementGateway) Attempt(ctx context.Context, req SettlementRequest) (SettlementResult, error) {
	return SettlementResult{
		Success:   g.Succeed,
		Reference: "bank_" + uuid.NewString(),
		Message:   g.Message,
	}, nil
}
