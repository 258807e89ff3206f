package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/usecase"
)

// GatewayResolver matches the payment adapter factory.
type GatewayResolver interface {
	Gateway(gw model.Gateway) (adapter.PaymentGateway, error)
}

// DedupCache short-circuits already-seen webhook deliveries. Optional; a nil
// cache disables dedup and the DB idempotency rule still holds.
type DedupCache interface {
	Seen(ctx context.Context, gateway, eventID string) (bool, error)
	Forget(ctx context.Context, gateway, eventID string) error
}

type Server struct {
	payUC    usecase.PaymentUseCase
	gateways GatewayResolver
	dedup    DedupCache
	auth     *AuthManager
	log      *zerolog.Logger
}

func NewServer(payUC usecase.PaymentUseCase, gateways GatewayResolver, dedup DedupCache, auth *AuthManager, logger *zerolog.Logger) *Server {
	return &Server{payUC: payUC, gateways: gateways, dedup: dedup, auth: auth, log: logger}
}

// Routes builds the router: tenant-scoped checkout API behind bearer auth,
// provider webhook endpoints gated by signature verification only.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/payments", s.handleCreateIntent)
			r.Get("/payments/{id}", s.handleGetPayment)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/flow", s.webhookHandler(model.GatewayFlow))
		r.Post("/paypal", s.webhookHandler(model.GatewayPayPal))
		r.Post("/mercadopago", s.webhookHandler(model.GatewayMercadoPago))
		r.Post("/nowpayments", s.webhookHandler(model.GatewayNOWPayments))
	})

	return r
}
