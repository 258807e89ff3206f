//go:build !integration

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/config"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
)

func newPayPalForTest(baseURL string) *PayPalGateway {
	return NewPayPalGateway(config.PayPalConfig{
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		WebhookID:    "wh_1",
		BaseURL:      baseURL,
		ReturnURL:    "https://shop.test/return",
		CancelURL:    "https://shop.test/cancel",
	}, 5*time.Second, newTestLogger())
}

func TestPayPalGateway_CreateIntent(t *testing.T) {
	t.Run("creates an order and reuses the oauth token", func(t *testing.T) {
		// --- Arrange ---
		var tokenCalls int
		var gotOrder map[string]any
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			tokenCalls++
			if u, p, ok := r.BasicAuth(); !ok || u != "client_1" || p != "secret_1" {
				t.Errorf("basic auth = %q/%q", u, p)
			}
			_, _ = w.Write([]byte(`{"access_token":"at_1","expires_in":3600}`))
		})
		mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer at_1" {
				t.Errorf("authorization = %q", got)
			}
			_ = json.NewDecoder(r.Body).Decode(&gotOrder)
			_, _ = w.Write([]byte(`{
				"id":"ORDER-1","status":"CREATED",
				"links":[
					{"href":"https://api.test/self","rel":"self"},
					{"href":"https://www.test/approve/ORDER-1","rel":"approve"}
				]}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()
		gw := newPayPalForTest(srv.URL)

		// --- Act ---
		res, err := gw.CreateIntent(context.Background(), adapter.IntentRequest{
			PaymentID: "pay_1", OrderID: "order_123", Amount: 2550, Currency: "USD",
		})
		if err != nil {
			t.Fatalf("CreateIntent failed: %v", err)
		}
		// second call must not mint a new token
		if _, err := gw.CreateIntent(context.Background(), adapter.IntentRequest{
			PaymentID: "pay_2", Amount: 100, Currency: "USD",
		}); err != nil {
			t.Fatalf("second CreateIntent failed: %v", err)
		}

		// --- Assert ---
		if res.IntentID != "ORDER-1" {
			t.Errorf("intent id = %q, want ORDER-1", res.IntentID)
		}
		if res.RedirectURL != "https://www.test/approve/ORDER-1" {
			t.Errorf("redirect url = %q", res.RedirectURL)
		}
		if tokenCalls != 1 {
			t.Errorf("token calls = %d, want 1", tokenCalls)
		}
		units := gotOrder["purchase_units"].([]any)
		amount := units[0].(map[string]any)["amount"].(map[string]any)
		if amount["value"] != "25.50" {
			t.Errorf("amount value = %v, want 25.50", amount["value"])
		}
	})

	t.Run("token rejection maps to upstream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()
		gw := newPayPalForTest(srv.URL)

		_, err := gw.CreateIntent(context.Background(), adapter.IntentRequest{PaymentID: "pay_1", Amount: 100, Currency: "USD"})
		if !errors.Is(err, domain.ErrUpstream) {
			t.Fatalf("err = %v, want ErrUpstream", err)
		}
	})

	t.Run("missing credentials is a configuration error", func(t *testing.T) {
		gw := NewPayPalGateway(config.PayPalConfig{}, time.Second, newTestLogger())

		_, err := gw.CreateIntent(context.Background(), adapter.IntentRequest{PaymentID: "pay_1", Amount: 100, Currency: "USD"})
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("err = %v, want ErrConfiguration", err)
		}
	})
}

func TestPayPalGateway_ParseWebhook(t *testing.T) {
	gw := newPayPalForTest("https://unused.test")

	t.Run("capture event resolves the checkout order id", func(t *testing.T) {
		body := `{
			"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED",
			"resource":{
				"id":"CAP-9","status":"COMPLETED",
				"amount":{"value":"25.50","currency_code":"USD"},
				"custom_id":"order_123",
				"supplementary_data":{"related_ids":{"order_id":"ORDER-1"}}
			}}`
		r := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", strings.NewReader(body))

		ev, err := gw.ParseWebhook(r, []byte(body))
		if err != nil {
			t.Fatalf("ParseWebhook failed: %v", err)
		}
		if ev.EventID != "WH-EVT-1" {
			t.Errorf("event id = %q", ev.EventID)
		}
		if ev.GatewayIntent != "ORDER-1" {
			t.Errorf("intent = %q, want ORDER-1 from supplementary data", ev.GatewayIntent)
		}
		if ev.GatewayTxID != "CAP-9" {
			t.Errorf("tx id = %q, want CAP-9", ev.GatewayTxID)
		}
		if ev.Status != model.PaymentStatusSucceeded {
			t.Errorf("status = %q, want succeeded", ev.Status)
		}
		if ev.Amount != 2550 || ev.Currency != "USD" || ev.OrderID != "order_123" {
			t.Errorf("unexpected event fields: %+v", ev)
		}
	})

	t.Run("order event falls back to the resource id", func(t *testing.T) {
		body := `{"id":"WH-EVT-2","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-2"}}`
		r := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", strings.NewReader(body))

		ev, err := gw.ParseWebhook(r, []byte(body))
		if err != nil {
			t.Fatalf("ParseWebhook failed: %v", err)
		}
		if ev.GatewayIntent != "ORDER-2" {
			t.Errorf("intent = %q, want ORDER-2", ev.GatewayIntent)
		}
	})

	t.Run("missing event_type is malformed", func(t *testing.T) {
		body := `{"id":"WH-EVT-3"}`
		r := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", strings.NewReader(body))

		_, err := gw.ParseWebhook(r, []byte(body))
		if !errors.Is(err, domain.ErrMalformedWebhook) {
			t.Fatalf("err = %v, want ErrMalformedWebhook", err)
		}
	})
}

func TestPayPalGateway_VerifySignature(t *testing.T) {
	gw := newPayPalForTest("https://unused.test")
	body := []byte(`{"id":"WH-EVT-1"}`)

	t.Run("rejects delivery without transmission headers", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", nil)
		if gw.VerifySignature(r, body) {
			t.Error("headerless delivery must not verify")
		}
	})

	t.Run("rejects a cert url outside the provider domain", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", nil)
		r.Header.Set("paypal-transmission-id", "tid-1")
		r.Header.Set("paypal-transmission-time", "2026-01-01T00:00:00Z")
		r.Header.Set("paypal-transmission-sig", "c2ln")
		r.Header.Set("paypal-cert-url", "https://evil.example.com/cert.pem")
		if gw.VerifySignature(r, body) {
			t.Error("foreign cert host must not verify")
		}
	})
}

func TestPayPalGateway_MapStatus(t *testing.T) {
	gw := newPayPalForTest("https://unused.test")

	cases := []struct {
		in   string
		want model.PaymentStatus
	}{
		{"PAYMENT.CAPTURE.COMPLETED", model.PaymentStatusSucceeded},
		{"CHECKOUT.ORDER.APPROVED", model.PaymentStatusSucceeded},
		{"PAYMENT.CAPTURE.DENIED", model.PaymentStatusFailed},
		{"PAYMENT.CAPTURE.REFUNDED", model.PaymentStatusFailed},
		{"PAYMENT.CAPTURE.REVERSED", model.PaymentStatusFailed},
		{"CHECKOUT.ORDER.VOIDED", model.PaymentStatusFailed},
		{"COMPLETED", model.PaymentStatusSucceeded},
		{"declined", model.PaymentStatusFailed},
		{"PAYMENT.CAPTURE.PENDING", model.PaymentStatusPending},
		{"BILLING.SUBSCRIPTION.CREATED", model.PaymentStatusPending},
		{"", model.PaymentStatusPending},
		{"SOMETHING.NEW.THE.API.ADDED", model.PaymentStatusPending},
	}
	for _, tc := range cases {
		if got := gw.MapStatus(tc.in); got != tc.want {
			t.Errorf("MapStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseDecimalMinor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"10", 1000},
		{"10.5", 1050},
		{"10.50", 1050},
		{"10.509", 1050},
		{"0.01", 1},
		{"-3.25", -325},
		{"abc", 0},
	}
	for _, tc := range cases {
		if got := parseDecimalMinor(tc.in); got != tc.want {
			t.Errorf("parseDecimalMinor(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
