package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/repository"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/metrics"
)

// PaymentReconciler periodically scans for payments stuck in pending past the
// staleness cutoff and flags them. Webhooks may never arrive at all; this job
// keeps such rows visible to operators instead of letting them rot silently.
// It does not re-drive provider calls itself.
type PaymentReconciler struct {
	payments   repository.PaymentRepository
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewPaymentReconciler(payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &PaymentReconciler{payments: payments, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list pending failed")
		return
	}
	for _, p := range pending {
		metrics.IncStalePending(string(p.Gateway))
		w.log.Warn().
			Str("payment_id", p.ID).
			Str("gateway", string(p.Gateway)).
			Str("gateway_intent", p.GatewayIntentID).
			Time("created_at", p.CreatedAt).
			Msg("payment-reconciler: stale pending payment")
	}
	if len(pending) > 0 {
		w.log.Info().Int("count", len(pending)).Msg("payment-reconciler: scan complete")
	}
}
