package adapter

import (
	"context"
	"net/http"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
)

// IntentRequest carries everything an adapter needs to open a payment intent
// with its provider. Amount is in minor units of Currency; each adapter owns
// the conversion to its provider's unit convention.
type IntentRequest struct {
	PaymentID      string
	OrderID        string
	UserID         string
	OrganizationID string
	Amount         int64
	Currency       string
	Description    string
	// Recurring asks the wallet provider for a preapproval instead of a
	// one-time preference. Tier selects the registered provider-side plan.
	Recurring bool
	Tier      string
}

// PaymentGateway is the port every provider adapter implements. Adapters hold
// credentials loaded at construction and are otherwise stateless; payment
// state lives exclusively in the payment row.
type PaymentGateway interface {
	Name() model.Gateway

	// CreateIntent performs one outbound call to the provider and returns the
	// provider-side handle plus the payer redirect target. It returns
	// domain.ErrConfiguration when credentials are absent and domain.ErrUpstream
	// (wrapping the provider's error body) when the provider rejects the call.
	CreateIntent(ctx context.Context, req IntentRequest) (*model.IntentResult, error)

	// ParseWebhook normalizes a provider delivery. body is the raw request body,
	// already read by the handler. Missing mandatory fields fail with
	// domain.ErrMalformedWebhook; this is a hard gate, not a best-effort parse.
	ParseWebhook(r *http.Request, body []byte) (*model.WebhookEvent, error)

	// VerifySignature reports whether the delivery authentically came from the
	// provider. A bad signature is an expected outcome and yields false, never
	// an error.
	VerifySignature(r *http.Request, body []byte) bool

	// MapStatus translates the provider's status vocabulary to the canonical
	// one. Total over all strings: anything unrecognized stays pending.
	MapStatus(providerStatus string) model.PaymentStatus
}
