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

var _ adapter.PaymentGateway = (*MercadoPagoGateway)(nil)

// MercadoPagoGateway supports one-time checkout preferences and recurring
// preapprovals. Recurring checkout requires a preapproval plan registered with
// the provider ahead of time, one per subscription tier.
type MercadoPagoGateway struct {
	accessToken   string
	webhookSecret string
	baseURL       string
	returnURL     string
	planIDs       map[string]string
	client        *http.Client
	log           *zerolog.Logger
}

func NewMercadoPagoGateway(cfg config.MercadoPagoConfig, callTimeout time.Duration, logger *zerolog.Logger) *MercadoPagoGateway {
	return &MercadoPagoGateway{
		accessToken:   cfg.AccessToken,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		returnURL:     cfg.ReturnURL,
		planIDs:       cfg.PlanIDs,
		client:        &http.Client{Timeout: callTimeout},
		log:           logger,
	}
}

func (g *MercadoPagoGateway) Name() model.Gateway { return model.GatewayMercadoPago }

func (g *MercadoPagoGateway) CreateIntent(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error) {
	if g.accessToken == "" {
		return nil, fmt.Errorf("mercadopago: access_token not configured: %w", domain.ErrConfiguration)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("mercadopago: amount must be positive: %w", domain.ErrInvalidArgument)
	}

	if req.Recurring {
		return g.createPreapproval(ctx, req)
	}
	return g.createPreference(ctx, req)
}

func (g *MercadoPagoGateway) createPreference(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error) {
	payload := map[string]any{
		"external_reference": orderRef(req),
		"items": []map[string]any{{
			"title":       req.Description,
			"quantity":    1,
			"unit_price":  float64(req.Amount) / 100,
			"currency_id": req.Currency,
		}},
		"back_urls":   map[string]string{"success": g.returnURL, "failure": g.returnURL, "pending": g.returnURL},
		"auto_return": "approved",
	}
	return g.post(ctx, "/checkout/preferences", payload)
}

func (g *MercadoPagoGateway) createPreapproval(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error) {
	planID := g.planIDs[req.Tier]
	if planID == "" {
		return nil, fmt.Errorf("mercadopago: recurring plan not available for tier %q: %w", req.Tier, domain.ErrConfiguration)
	}
	payload := map[string]any{
		"preapproval_plan_id": planID,
		"external_reference":  orderRef(req),
		"reason":              req.Description,
		"back_url":            g.returnURL,
	}
	return g.post(ctx, "/preapproval", payload)
}

func (g *MercadoPagoGateway) post(ctx context.Context, path string, payload map[string]any) (*model.IntentResult, error) {
	b, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("mercadopago request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mercadopago %s: %w: %v", path, domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago %s read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago %s: http %d: %s: %w", path, resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}

	var out struct {
		ID        json.Number `json:"id"`
		InitPoint string      `json:"init_point"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.ID.String() == "" {
		return nil, fmt.Errorf("mercadopago %s decode: %w", path, domain.ErrUpstream)
	}

	return &model.IntentResult{
		Gateway:     model.GatewayMercadoPago,
		IntentID:    out.ID.String(),
		RedirectURL: out.InitPoint,
		Status:      model.PaymentStatusPending,
	}, nil
}

type mercadoPagoWebhookBody struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Topic  string      `json:"topic"`
	Action string      `json:"action"`
	Data   struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		ExternalReference string      `json:"external_reference"`
		TransactionAmount float64     `json:"transaction_amount"`
		CurrencyID        string      `json:"currency_id"`
	} `json:"data"`
}

func (g *MercadoPagoGateway) ParseWebhook(r *http.Request, body []byte) (*model.WebhookEvent, error) {
	var wh mercadoPagoWebhookBody
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("%w: unparsable json body", domain.ErrMalformedWebhook)
	}

	eventType := wh.Type
	if eventType == "" {
		eventType = wh.Topic
	}
	if wh.Data.ID.String() == "" || eventType == "" {
		return nil, fmt.Errorf("%w: data.id/type", domain.ErrMalformedWebhook)
	}

	// Notifications do not always embed the resource status; a missing status
	// maps to pending, leaving the row for a later delivery or reconciliation.
	return &model.WebhookEvent{
		Gateway:       model.GatewayMercadoPago,
		EventID:       wh.ID.String(),
		Type:          eventType,
		Status:        g.MapStatus(wh.Data.Status),
		RawStatus:     wh.Data.Status,
		GatewayTxID:   wh.Data.ID.String(),
		GatewayIntent: wh.Data.ID.String(),
		Amount:        int64(math.Round(wh.Data.TransactionAmount * 100)),
		Currency:      wh.Data.CurrencyID,
		OrderID:       wh.Data.ExternalReference,
		Metadata:      map[string]string{"action": wh.Action},
	}, nil
}

// VerifySignature checks the x-signature header (ts=...,v1=...) against the
// HMAC-SHA256 manifest "id:{data.id};request-id:{x-request-id};ts:{ts};".
func (g *MercadoPagoGateway) VerifySignature(r *http.Request, body []byte) bool {
	if g.webhookSecret == "" {
		return false
	}
	header := r.Header.Get("x-signature")
	if header == "" {
		return false
	}

	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	var wh mercadoPagoWebhookBody
	if err := json.Unmarshal(body, &wh); err != nil {
		return false
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(wh.Data.ID.String()), r.Header.Get("x-request-id"), ts)
	return hmacEqualHex(hmacSHA256Hex(g.webhookSecret, []byte(manifest)), v1)
}

func (g *MercadoPagoGateway) MapStatus(providerStatus string) model.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "approved", "accredited":
		return model.PaymentStatusSucceeded
	case "rejected", "cancelled", "refunded", "charged_back":
		return model.PaymentStatusFailed
	default:
		// pending, in_process, in_mediation, authorized and anything unknown
		return model.PaymentStatusPending
	}
}
