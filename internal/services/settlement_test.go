package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestHTTPSettlementGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_live" {
			t.Errorf("Authorization = %q", got)
		}
		var req SettlementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Kind != "recharge" || req.Reference != "txn_abc" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(SettlementResult{Success: true, Reference: "bank_xyz"})
	}))
	defer upstream.Close()

	g := NewHTTPSettlementGateway(upstream.URL, "sk_live")
	result, err := g.Attempt(context.Background(), SettlementRequest{
		Reference: "txn_abc",
		Kind:      "recharge",
		Target:    "9876543210",
		Amount:    decimal.RequireFromString("199.00"),
		Currency:  "INR",
	})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if !result.Success || result.Reference != "bank_xyz" {
		t.Fatalf("result = %+v", result)
	}
}

func TestHTTPSettlementGatewayNonOKStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(SettlementResult{Success: true, Message: "should be ignored"})
	}))
	defer upstream.Close()

	g := NewHTTPSettlementGateway(upstream.URL, "sk_live")
	result, err := g.Attempt(context.Background(), SettlementRequest{Reference: "txn_abc"})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if result.Success {
		t.Fatal("non-2xx response must not report success")
	}
}
