package repository

import (
	"context"
	"time"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
)

// PaymentRepository handles payment row persistence. Implementations must keep
// the (gateway, gateway_intent_id) pair unique across rows and report
// violations as domain.ErrInvalidArgument.
type PaymentRepository interface {
	// Save inserts a new payment row.
	Save(ctx context.Context, p *model.Payment) error

	// FindByID returns a payment by internal id or domain.ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Payment, error)

	// FindByGatewayIntent resolves the row a webhook refers to by the
	// provider-side intent id. Returns domain.ErrNotFound when unknown.
	FindByGatewayIntent(ctx context.Context, gw model.Gateway, intentID string) (*model.Payment, error)

	// FindByOrder is the fallback lookup for providers whose first webhook can
	// land before the intent id is persisted. Newest row wins.
	FindByOrder(ctx context.Context, orderID string, gw model.Gateway) (*model.Payment, error)

	// UpdateIntent records the provider-assigned ids right after intent
	// creation. Forward-progress metadata only; it never changes status.
	UpdateIntent(ctx context.Context, id, intentID, txID string) error

	// TransitionFromPending atomically moves a pending row to status in a
	// single statement. It reports false without error when the row was
	// already terminal, which makes webhook redelivery safe.
	TransitionFromPending(ctx context.Context, id string, status model.PaymentStatus, failureReason, txID string) (bool, error)

	// ListPendingOlderThan returns pending rows created before cutoff, oldest
	// first, for the stale-payment reconciler.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error)
}
