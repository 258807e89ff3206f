package model

// WebhookEvent is the normalized shape every gateway adapter produces from its
// provider-specific payload. It is transient; only the Payment row persists.
type WebhookEvent struct {
	Gateway        Gateway
	EventID        string // provider delivery/event id, used for dedup
	Type           string // provider event type verbatim (e.g. PAYMENT.CAPTURE.COMPLETED)
	Status         PaymentStatus
	RawStatus      string // provider vocabulary before mapping, kept for logs
	GatewayTxID    string
	GatewayIntent  string
	Amount         int64
	Currency       string
	OrderID        string
	OrganizationID string
	Metadata       map[string]string
}

// IntentResult is what a gateway adapter returns from intent creation.
type IntentResult struct {
	Gateway Gateway
	// IntentID is the provider-side id to persist on the payment row.
	IntentID string
	// RedirectURL is where the payer completes the charge (approval URL for
	// redirect providers, invoice URL for the crypto provider).
	RedirectURL string
	// ClientSecret is set only by providers that hand a browser-side secret.
	ClientSecret string
	Status       PaymentStatus
}
