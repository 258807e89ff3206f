package payment

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/config"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PayPalGateway)(nil)

// PayPalGateway creates checkout orders via the v2 REST API and verifies
// webhook deliveries against the provider's certificate chain headers.
type PayPalGateway struct {
	clientID     string
	clientSecret string
	webhookID    string
	baseURL      string
	returnURL    string
	cancelURL    string
	client       *http.Client
	log          *zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	certs    map[string]*x509.Certificate // memoized by cert URL
}

func NewPayPalGateway(cfg config.PayPalConfig, callTimeout time.Duration, logger *zerolog.Logger) *PayPalGateway {
	return &PayPalGateway{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		returnURL:    cfg.ReturnURL,
		cancelURL:    cfg.CancelURL,
		client:       &http.Client{Timeout: callTimeout},
		log:          logger,
		certs:        make(map[string]*x509.Certificate),
	}
}

func (g *PayPalGateway) Name() model.Gateway { return model.GatewayPayPal }

// accessToken mints (or reuses) an OAuth2 client-credentials token.
func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && time.Now().Before(g.tokenExp) {
		return g.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("paypal token read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("paypal token: http %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return "", fmt.Errorf("paypal token decode: %w", domain.ErrUpstream)
	}
	g.token = out.AccessToken
	// renew a minute early
	g.tokenExp = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return g.token, nil
}

func (g *PayPalGateway) CreateIntent(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error) {
	if g.clientID == "" || g.clientSecret == "" {
		return nil, fmt.Errorf("paypal: client_id/client_secret not configured: %w", domain.ErrConfiguration)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("paypal: amount must be positive: %w", domain.ErrInvalidArgument)
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"custom_id":   orderRef(req),
			"description": req.Description,
			"amount": map[string]string{
				"currency_code": req.Currency,
				// decimal major units with two places
				"value": fmt.Sprintf("%d.%02d", req.Amount/100, req.Amount%100),
			},
		}},
		"application_context": map[string]string{
			"return_url": g.returnURL,
			"cancel_url": g.cancelURL,
		},
	}
	b, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/checkout/orders", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("paypal create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paypal create: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("paypal create read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paypal create: http %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.ID == "" {
		return nil, fmt.Errorf("paypal create decode: %w", domain.ErrUpstream)
	}

	var approval string
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approval = l.Href
			break
		}
	}

	return &model.IntentResult{
		Gateway:     model.GatewayPayPal,
		IntentID:    out.ID,
		RedirectURL: approval,
		Status:      g.MapStatus(out.Status),
	}, nil
}

type paypalWebhookBody struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		CustomID          string `json:"custom_id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (g *PayPalGateway) ParseWebhook(r *http.Request, body []byte) (*model.WebhookEvent, error) {
	var wh paypalWebhookBody
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("%w: unparsable json body", domain.ErrMalformedWebhook)
	}
	if wh.ID == "" || wh.EventType == "" {
		return nil, fmt.Errorf("%w: id/event_type", domain.ErrMalformedWebhook)
	}

	// Capture events reference their checkout order via supplementary data;
	// order-level events carry the order id as the resource id itself.
	intentID := wh.Resource.SupplementaryData.RelatedIDs.OrderID
	if intentID == "" {
		intentID = wh.Resource.ID
	}

	amount := parseDecimalMinor(wh.Resource.Amount.Value)

	return &model.WebhookEvent{
		Gateway:       model.GatewayPayPal,
		EventID:       wh.ID,
		Type:          wh.EventType,
		Status:        g.MapStatus(wh.EventType),
		RawStatus:     wh.EventType,
		GatewayTxID:   wh.Resource.ID,
		GatewayIntent: intentID,
		Amount:        amount,
		Currency:      wh.Resource.Amount.CurrencyCode,
		OrderID:       wh.Resource.CustomID,
		Metadata:      map[string]string{"resource_status": wh.Resource.Status},
	}, nil
}

// VerifySignature checks the certificate-chain headers: the provider signs
// transmissionID|transmissionTime|webhookID|crc32(body) with the key behind
// paypal-cert-url.
func (g *PayPalGateway) VerifySignature(r *http.Request, body []byte) bool {
	transmissionID := r.Header.Get("paypal-transmission-id")
	transmissionTime := r.Header.Get("paypal-transmission-time")
	signature := r.Header.Get("paypal-transmission-sig")
	certURL := r.Header.Get("paypal-cert-url")
	if transmissionID == "" || transmissionTime == "" || signature == "" || certURL == "" || g.webhookID == "" {
		return false
	}

	cert, err := g.certificate(certURL)
	if err != nil {
		g.log.Warn().Err(err).Str("cert_url", certURL).Msg("paypal webhook cert fetch failed")
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	expected := fmt.Sprintf("%s|%s|%s|%d", transmissionID, transmissionTime, g.webhookID, crc32.ChecksumIEEE(body))
	return cert.CheckSignature(x509.SHA256WithRSA, []byte(expected), sig) == nil
}

// certificate downloads and memoizes the signing certificate. Only hosts under
// the provider's domain are accepted.
func (g *PayPalGateway) certificate(certURL string) (*x509.Certificate, error) {
	g.mu.Lock()
	if c, ok := g.certs[certURL]; ok {
		g.mu.Unlock()
		return c, nil
	}
	g.mu.Unlock()

	u, err := url.Parse(certURL)
	if err != nil {
		return nil, fmt.Errorf("parse cert url: %w", err)
	}
	if u.Scheme != "https" || !strings.HasSuffix(u.Hostname(), ".paypal.com") {
		return nil, fmt.Errorf("untrusted cert url host %q", u.Hostname())
	}

	resp, err := g.client.Get(certURL)
	if err != nil {
		return nil, fmt.Errorf("fetch cert: %w", err)
	}
	defer resp.Body.Close()
	pemBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cert: %w", err)
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no pem block in cert response")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse cert: %w", err)
	}

	g.mu.Lock()
	g.certs[certURL] = cert
	g.mu.Unlock()
	return cert, nil
}

// MapStatus is total over event types and resource statuses alike. Terminal
// verdicts need an explicit match; anything else stays provisional.
func (g *PayPalGateway) MapStatus(providerStatus string) model.PaymentStatus {
	s := strings.ToUpper(strings.TrimSpace(providerStatus))
	// event types carry the verdict as the last dotted segment
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	switch s {
	case "COMPLETED", "APPROVED", "CAPTURED":
		return model.PaymentStatusSucceeded
	case "DENIED", "DECLINED", "FAILED", "REVERSED", "REFUNDED", "VOIDED", "CANCELLED", "EXPIRED":
		return model.PaymentStatusFailed
	default:
		return model.PaymentStatusPending
	}
}

// parseDecimalMinor converts a decimal major-unit string like "10.50" to minor
// units. Malformed values collapse to 0; amounts are informational on the
// webhook path, the authoritative figure lives on the payment row.
func parseDecimalMinor(v string) int64 {
	if v == "" {
		return 0
	}
	whole, frac, _ := strings.Cut(v, ".")
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0
	}
	if frac == "" {
		return w * 100
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0
	}
	if w < 0 {
		return w*100 - f
	}
	return w*100 + f
}
