package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/repository"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/logging"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// GatewayResolver resolves a gateway identifier to its adapter.
type GatewayResolver interface {
	Gateway(gw model.Gateway) (adapter.PaymentGateway, error)
}

// CreateIntentInput is the checkout request after authentication.
type CreateIntentInput struct {
	OrderID        string
	OrganizationID string
	UserID         string
	Amount         int64
	Currency       string
	Gateway        model.Gateway
	Description    string
	Recurring      bool
	Tier           string
}

type PaymentUseCase interface {
	// CreateIntent persists a pending payment row, then opens the intent with
	// the provider and records the returned id. The row is written first so a
	// crash mid-call leaves a durable record to reconcile against.
	CreateIntent(ctx context.Context, in CreateIntentInput) (*model.Payment, *model.IntentResult, error)

	// CreatePayment inserts a new pending row. Retried checkouts deliberately
	// create new rows; prior attempts are never overwritten.
	CreatePayment(ctx context.Context, in CreateIntentInput) (*model.Payment, error)

	// UpdatePaymentStatus enriches a row with provider-assigned ids right
	// after intent creation. It is not guarded by the idempotency rule.
	UpdatePaymentStatus(ctx context.Context, paymentID, intentID, txID string) error

	// UpdatePaymentFromWebhook applies a normalized webhook event. The bool
	// result is the handler-facing success flag: false only when the event
	// matches no known payment.
	UpdatePaymentFromWebhook(ctx context.Context, ev *model.WebhookEvent) (bool, error)

	// GetPayment returns a payment by internal id.
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	gateways GatewayResolver
	log      *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, gateways GatewayResolver, logger *zerolog.Logger) *paymentUC {
	return &paymentUC{payments: payments, gateways: gateways, log: logger}
}

func (u *paymentUC) CreatePayment(ctx context.Context, in CreateIntentInput) (*model.Payment, error) {
	if in.Amount <= 0 || in.Currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	orderID := in.OrderID
	if orderID == "" {
		// standalone checkouts still need a merchant-side reference for the
		// provider; ULIDs sort by creation time in provider dashboards
		orderID = ulid.Make().String()
	}
	now := time.Now()
	p := &model.Payment{
		ID:             uuid.NewString(),
		OrderID:        orderID,
		OrganizationID: in.OrganizationID,
		UserID:         in.UserID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Gateway:        in.Gateway,
		Status:         model.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(in.Gateway), string(model.PaymentStatusPending))
	return p, nil
}

func (u *paymentUC) CreateIntent(ctx context.Context, in CreateIntentInput) (*model.Payment, *model.IntentResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateIntent")()

	gw, err := u.gateways.Gateway(in.Gateway)
	if err != nil {
		return nil, nil, err
	}

	p, err := u.CreatePayment(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	ctx = logging.WithPaymentID(ctx, p.ID)

	res, err := gw.CreateIntent(ctx, adapter.IntentRequest{
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		UserID:         in.UserID,
		OrganizationID: in.OrganizationID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Description:    in.Description,
		Recurring:      in.Recurring,
		Tier:           in.Tier,
	})
	if err != nil {
		// The pending row is kept, not rolled back, so operators can
		// reconcile attempts the provider may have registered anyway.
		metrics.IncIntentRequest(string(in.Gateway), intentResultLabel(err))
		logging.With(ctx, u.log).Error().Err(err).Str("gateway", string(in.Gateway)).Msg("create intent failed")
		return p, nil, err
	}
	metrics.IncIntentRequest(string(in.Gateway), "ok")

	if err := u.UpdatePaymentStatus(ctx, p.ID, res.IntentID, ""); err != nil {
		// Intent exists provider-side but we failed to persist its id; the
		// webhook fallback lookup by order still finds this row.
		logging.With(ctx, u.log).Error().Err(err).Msg("persist intent id failed")
		return p, res, err
	}
	p.GatewayIntentID = res.IntentID

	return p, res, nil
}

func (u *paymentUC) UpdatePaymentStatus(ctx context.Context, paymentID, intentID, txID string) error {
	return u.payments.UpdateIntent(ctx, paymentID, intentID, txID)
}

func (u *paymentUC) UpdatePaymentFromWebhook(ctx context.Context, ev *model.WebhookEvent) (bool, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.UpdatePaymentFromWebhook")()

	p, err := u.resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A webhook for an unknown payment must never crash the handler;
			// the provider retries delivery regardless.
			u.log.Warn().
				Str("gateway", string(ev.Gateway)).
				Str("event_id", ev.EventID).
				Str("gateway_intent", ev.GatewayIntent).
				Str("order_id", ev.OrderID).
				Msg("webhook for unknown payment")
			return false, nil
		}
		return false, err
	}
	ctx = logging.WithPaymentID(ctx, p.ID)

	if p.Status.Terminal() {
		// Idempotency boundary: redelivery and out-of-order terminal events
		// are accepted but cannot un-settle the row.
		if ev.Status.Terminal() && ev.Status != p.Status {
			metrics.IncWebhookTerminalConflict(string(ev.Gateway))
			logging.With(ctx, u.log).Warn().
				Str("recorded", string(p.Status)).
				Str("asserted", string(ev.Status)).
				Str("event_id", ev.EventID).
				Msg("conflicting terminal webhook dropped")
		}
		return true, nil
	}

	if !ev.Status.Terminal() {
		// pending -> pending: nothing to transition, but keep provider ids.
		if ev.GatewayTxID != "" || ev.GatewayIntent != "" {
			if err := u.payments.UpdateIntent(ctx, p.ID, ev.GatewayIntent, ev.GatewayTxID); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	applied, err := u.payments.TransitionFromPending(ctx, p.ID, ev.Status, failureReason(ev), ev.GatewayTxID)
	if err != nil {
		return false, err
	}
	if !applied {
		// A concurrent delivery settled the row between our read and write.
		return true, nil
	}

	metrics.IncPayment(string(ev.Gateway), string(ev.Status))
	if ev.Status == model.PaymentStatusSucceeded {
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
	}
	logging.With(ctx, u.log).Info().
		Str("status", string(ev.Status)).
		Str("event_id", ev.EventID).
		Msg("payment settled by webhook")
	return true, nil
}

func (u *paymentUC) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, id)
}

// resolve finds the payment row a webhook refers to: by provider intent id
// first, then by order reference for providers whose first delivery can beat
// the synchronous intent-creation response.
func (u *paymentUC) resolve(ctx context.Context, ev *model.WebhookEvent) (*model.Payment, error) {
	if ev.GatewayIntent != "" {
		p, err := u.payments.FindByGatewayIntent(ctx, ev.Gateway, ev.GatewayIntent)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if ev.OrderID != "" {
		return u.payments.FindByOrder(ctx, ev.OrderID, ev.Gateway)
	}
	return nil, domain.ErrNotFound
}

func failureReason(ev *model.WebhookEvent) string {
	if ev.Status != model.PaymentStatusFailed {
		return ""
	}
	return ev.RawStatus
}

func intentResultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return "config_error"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
