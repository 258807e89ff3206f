package model

import "time"

// Gateway identifies one of the supported payment providers. The set is fixed
// at deployment time; routing over it is a closed switch, not a plugin registry.
type Gateway string

const (
	GatewayFlow        Gateway = "flow"
	GatewayPayPal      Gateway = "paypal"
	GatewayMercadoPago Gateway = "mercadopago"
	GatewayNOWPayments Gateway = "nowpayments"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created; awaiting a terminal webhook
	PaymentStatusSucceeded PaymentStatus = "succeeded" // provider confirmed the charge
	PaymentStatusFailed    PaymentStatus = "failed"    // provider rejected, cancelled or expired it
)

// Terminal reports whether s can no longer change. Once a payment reaches a
// terminal status, later webhook deliveries are accepted but ignored.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// Payment records one payment attempt. Rows are never deleted and amount,
// currency and gateway are immutable after creation; a retried checkout
// creates a new row instead of mutating a prior attempt.
type Payment struct {
	ID             string // UUID, internal; never shown to providers
	OrderID        string // merchant-side order reference; empty for order-less charges
	OrganizationID string // tenant
	UserID         string // actor who initiated checkout
	Amount         int64  // minor units of Currency
	Currency       string
	Gateway        Gateway
	// GatewayIntentID is the provider-side handle (Flow token, PayPal order id,
	// Mercado Pago preference id, NOWPayments invoice id). Empty until the
	// create-intent call returns.
	GatewayIntentID string
	// GatewayTxID is the provider transaction/capture id reported by webhooks.
	GatewayTxID   string
	Status        PaymentStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
