package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/config"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NOWPaymentsGateway)(nil)

// NOWPaymentsGateway sells invoices payable in cryptocurrency. IPN callbacks
// arrive as JSON signed with HMAC-SHA512 over the sorted-key body.
type NOWPaymentsGateway struct {
	apiKey    string
	ipnSecret string
	baseURL   string
	client    *http.Client
	log       *zerolog.Logger
}

func NewNOWPaymentsGateway(cfg config.NOWPaymentsConfig, callTimeout time.Duration, logger *zerolog.Logger) *NOWPaymentsGateway {
	return &NOWPaymentsGateway{
		apiKey:    cfg.APIKey,
		ipnSecret: cfg.IPNSecret,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: callTimeout},
		log:       logger,
	}
}

func (g *NOWPaymentsGateway) Name() model.Gateway { return model.GatewayNOWPayments }

func (g *NOWPaymentsGateway) CreateIntent(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("nowpayments: api_key not configured: %w", domain.ErrConfiguration)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("nowpayments: amount must be positive: %w", domain.ErrInvalidArgument)
	}

	payload := map[string]any{
		// price in fiat major units; the payer chooses the coin on the invoice page
		"price_amount":      float64(req.Amount) / 100,
		"price_currency":    strings.ToLower(req.Currency),
		"order_id":          orderRef(req),
		"order_description": req.Description,
	}
	b, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/invoice", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("nowpayments invoice request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nowpayments invoice: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nowpayments invoice read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nowpayments invoice: http %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}

	var out struct {
		ID         json.Number `json:"id"`
		InvoiceURL string      `json:"invoice_url"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.ID.String() == "" {
		return nil, fmt.Errorf("nowpayments invoice decode: %w", domain.ErrUpstream)
	}

	return &model.IntentResult{
		Gateway:     model.GatewayNOWPayments,
		IntentID:    out.ID.String(),
		RedirectURL: out.InvoiceURL,
		Status:      model.PaymentStatusPending,
	}, nil
}

type nowPaymentsIPN struct {
	PaymentID     json.Number `json:"payment_id"`
	InvoiceID     json.Number `json:"invoice_id"`
	PaymentStatus string      `json:"payment_status"`
	PriceAmount   float64     `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
	PayCurrency   string      `json:"pay_currency"`
	OrderID       string      `json:"order_id"`
}

func (g *NOWPaymentsGateway) ParseWebhook(r *http.Request, body []byte) (*model.WebhookEvent, error) {
	var ipn nowPaymentsIPN
	if err := json.Unmarshal(body, &ipn); err != nil {
		return nil, fmt.Errorf("%w: unparsable json body", domain.ErrMalformedWebhook)
	}
	if ipn.PaymentID.String() == "" || ipn.PaymentStatus == "" {
		return nil, fmt.Errorf("%w: payment_id/payment_status", domain.ErrMalformedWebhook)
	}

	intentID := ipn.InvoiceID.String()
	if intentID == "" {
		intentID = ipn.PaymentID.String()
	}

	return &model.WebhookEvent{
		Gateway:       model.GatewayNOWPayments,
		EventID:       ipn.PaymentID.String() + ":" + ipn.PaymentStatus,
		Type:          "ipn",
		Status:        g.MapStatus(ipn.PaymentStatus),
		RawStatus:     ipn.PaymentStatus,
		GatewayTxID:   ipn.PaymentID.String(),
		GatewayIntent: intentID,
		Amount:        int64(math.Round(ipn.PriceAmount * 100)),
		Currency:      strings.ToUpper(ipn.PriceCurrency),
		OrderID:       ipn.OrderID,
		Metadata:      map[string]string{"pay_currency": ipn.PayCurrency},
	}, nil
}

// VerifySignature recomputes x-nowpayments-sig: HMAC-SHA512 over the body
// re-serialized with lexicographically sorted keys.
func (g *NOWPaymentsGateway) VerifySignature(r *http.Request, body []byte) bool {
	if g.ipnSecret == "" {
		return false
	}
	sig := r.Header.Get("x-nowpayments-sig")
	if sig == "" {
		return false
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	// encoding/json marshals map keys in sorted order
	sorted, err := json.Marshal(fields)
	if err != nil {
		return false
	}
	return hmacEqualHex(hmacSHA512Hex(g.ipnSecret, sorted), sig)
}

func (g *NOWPaymentsGateway) MapStatus(providerStatus string) model.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "finished", "confirmed":
		return model.PaymentStatusSucceeded
	case "failed", "refunded", "expired":
		return model.PaymentStatusFailed
	default:
		// waiting, confirming, sending, partially_paid and anything unknown
		return model.PaymentStatusPending
	}
}
