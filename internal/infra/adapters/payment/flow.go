package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/config"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*FlowGateway)(nil)

// FlowGateway talks to the Chilean card-redirect processor. Intent creation is
// a signed form POST; the payer is sent to a hosted page and the processor
// confirms asynchronously with a signed form-encoded webhook.
type FlowGateway struct {
	apiKey     string
	secretKey  string
	baseURL    string
	returnURL  string
	confirmURL string
	client     *http.Client
	log        *zerolog.Logger
}

func NewFlowGateway(cfg config.FlowConfig, callTimeout time.Duration, logger *zerolog.Logger) *FlowGateway {
	return &FlowGateway{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		returnURL:  cfg.ReturnURL,
		confirmURL: cfg.ConfirmURL,
		client:     &http.Client{Timeout: callTimeout},
		log:        logger,
	}
}

func (g *FlowGateway) Name() model.Gateway { return model.GatewayFlow }

type flowCreateResponse struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	FlowOrder int64  `json:"flowOrder"`
}

func (g *FlowGateway) CreateIntent(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error) {
	if g.apiKey == "" || g.secretKey == "" {
		return nil, fmt.Errorf("flow: api_key/secret_key not configured: %w", domain.ErrConfiguration)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("flow: amount must be positive: %w", domain.ErrInvalidArgument)
	}

	params := url.Values{}
	params.Set("apiKey", g.apiKey)
	params.Set("commerceOrder", orderRef(req))
	params.Set("subject", req.Description)
	// Flow takes whole currency units; CLP carries no decimals.
	params.Set("amount", strconv.FormatInt(req.Amount, 10))
	params.Set("currency", req.Currency)
	params.Set("urlReturn", g.returnURL)
	params.Set("urlConfirmation", g.confirmURL)
	params.Set("s", signSortedParams(g.secretKey, params))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payment/create", strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("flow create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flow create: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("flow create read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("flow create: http %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}

	var out flowCreateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("flow create decode: %w: %v", domain.ErrUpstream, err)
	}
	if out.Token == "" || out.URL == "" {
		return nil, fmt.Errorf("flow create: empty token/url in response: %w", domain.ErrUpstream)
	}

	return &model.IntentResult{
		Gateway:     model.GatewayFlow,
		IntentID:    out.Token,
		RedirectURL: out.URL + "?token=" + out.Token,
		Status:      model.PaymentStatusPending,
	}, nil
}

// ParseWebhook handles the form-encoded confirmation POST. token and status
// are mandatory; everything else is carried through when present.
func (g *FlowGateway) ParseWebhook(r *http.Request, body []byte) (*model.WebhookEvent, error) {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable form body", domain.ErrMalformedWebhook)
	}

	token := vals.Get("token")
	status := vals.Get("status")
	if token == "" || status == "" {
		return nil, fmt.Errorf("%w: token/status", domain.ErrMalformedWebhook)
	}

	amount, _ := strconv.ParseInt(vals.Get("amount"), 10, 64)

	return &model.WebhookEvent{
		Gateway:       model.GatewayFlow,
		EventID:       token + ":" + status,
		Type:          "payment",
		Status:        g.MapStatus(status),
		RawStatus:     status,
		GatewayIntent: token,
		Amount:        amount,
		Currency:      vals.Get("currency"),
		OrderID:       vals.Get("commerceOrder"),
		Metadata:      map[string]string{"subject": vals.Get("subject")},
	}, nil
}

// VerifySignature recomputes the s parameter over the sorted form fields.
func (g *FlowGateway) VerifySignature(r *http.Request, body []byte) bool {
	if g.secretKey == "" {
		return false
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return false
	}
	sig := vals.Get("s")
	if sig == "" {
		return false
	}
	return hmacEqualHex(signSortedParams(g.secretKey, vals), sig)
}

// MapStatus translates Flow's numeric codes: 1 pending, 2 approved,
// 3 rejected, 4 cancelled. Unknown codes stay pending.
func (g *FlowGateway) MapStatus(providerStatus string) model.PaymentStatus {
	switch strings.TrimSpace(providerStatus) {
	case "2":
		return model.PaymentStatusSucceeded
	case "3", "4":
		return model.PaymentStatusFailed
	default:
		return model.PaymentStatusPending
	}
}

// orderRef picks the merchant-side reference handed to redirect providers:
// the order id when the checkout is order-bound, the payment id otherwise.
func orderRef(req adapter.IntentRequest) string {
	if req.OrderID != "" {
		return req.OrderID
	}
	return req.PaymentID
}
