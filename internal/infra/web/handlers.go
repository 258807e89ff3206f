package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/logging"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB

type ackBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeAck(w http.ResponseWriter, code int, body ackBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// badSignatureStatus encodes the per-provider acknowledgment for a failed
// signature check. The redirect processors retry a bounded number of times on
// 4xx; the other two retry aggressively, so they get a 200 with an error body
// to stop hostile retry storms. This asymmetry is provider policy, not a bug.
func badSignatureStatus(gw model.Gateway) int {
	switch gw {
	case model.GatewayFlow, model.GatewayMercadoPago:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

// webhookHandler builds the ingestion endpoint for one provider. Once the
// payload is parsed and the signature verified, the handler acknowledges with
// 200 even when the downstream update logically failed: most providers treat
// non-2xx as "retry forever", and an application-level failure retried forever
// is worse than one logged and handled out-of-band. Only a malformed payload
// (an integration bug that must be loud) yields a server error.
func (s *Server) webhookHandler(gw model.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.ObserveWebhookDuration(string(gw), time.Since(start).Seconds())
		}()

		adapterGw, err := s.gateways.Gateway(gw)
		if err != nil {
			// routes and factory share the same closed set; this is unreachable
			// unless the wiring regresses
			s.log.Error().Err(err).Msg("webhook route for unknown gateway")
			writeAck(w, http.StatusInternalServerError, ackBody{Status: "error", Message: "unknown gateway"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			metrics.IncWebhookDelivery(string(gw), "error")
			writeAck(w, http.StatusOK, ackBody{Status: "error", Message: "unreadable body"})
			return
		}

		if !adapterGw.VerifySignature(r, body) {
			metrics.IncWebhookSignatureFailure(string(gw))
			metrics.IncWebhookDelivery(string(gw), "bad_signature")
			s.log.Warn().Str("gateway", string(gw)).Msg("webhook signature rejected")
			writeAck(w, badSignatureStatus(gw), ackBody{Status: "error", Message: "invalid signature"})
			return
		}

		event, err := adapterGw.ParseWebhook(r, body)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedWebhook) {
				metrics.IncWebhookDelivery(string(gw), "malformed")
				s.log.Error().Err(err).Str("gateway", string(gw)).Msg("malformed webhook payload")
				writeAck(w, http.StatusInternalServerError, ackBody{Status: "error", Message: err.Error()})
				return
			}
			metrics.IncWebhookDelivery(string(gw), "error")
			s.log.Error().Err(err).Str("gateway", string(gw)).Msg("webhook parse failed")
			writeAck(w, http.StatusInternalServerError, ackBody{Status: "error", Message: "parse failed"})
			return
		}

		ctx := logging.WithGateway(r.Context(), string(gw))
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = logging.WithTraceID(ctx, reqID)
		}

		if s.dedup != nil {
			seen, derr := s.dedup.Seen(ctx, string(gw), event.EventID)
			if derr != nil {
				// dedup is best-effort; the DB idempotency rule still holds
				s.log.Warn().Err(derr).Str("gateway", string(gw)).Msg("webhook dedup unavailable")
			} else if seen {
				metrics.IncWebhookDuplicate(string(gw))
				metrics.IncWebhookDelivery(string(gw), "duplicate")
				writeAck(w, http.StatusOK, ackBody{Status: "ok"})
				return
			}
		}

		ok, err := s.payUC.UpdatePaymentFromWebhook(ctx, event)
		if err != nil {
			// Persistence failures are logged and acknowledged; a retry storm
			// against a broken store helps nobody. Drop the dedup mark so a
			// later redelivery gets another chance.
			if s.dedup != nil {
				_ = s.dedup.Forget(ctx, string(gw), event.EventID)
			}
			metrics.IncWebhookDelivery(string(gw), "error")
			logging.With(ctx, s.log).Error().Err(err).
				Str("event_id", event.EventID).
				Msg("webhook update failed")
			writeAck(w, http.StatusOK, ackBody{Status: "error", Message: "processing failed"})
			return
		}
		if !ok {
			// The row may exist by the time the provider redelivers (intent id
			// persisted late, checkout raced the first delivery), so the event
			// must stay eligible.
			if s.dedup != nil {
				_ = s.dedup.Forget(ctx, string(gw), event.EventID)
			}
			metrics.IncWebhookDelivery(string(gw), "unknown_payment")
			writeAck(w, http.StatusOK, ackBody{Status: "error", Message: "unknown payment"})
			return
		}

		metrics.IncWebhookDelivery(string(gw), "processed")
		writeAck(w, http.StatusOK, ackBody{Status: "ok"})
	}
}
