//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/ports/adapter"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu    sync.Mutex
	store map[string]*model.Payment

	saveErr       error
	transitionErr error
	SaveFunc      func(p *model.Payment) // observation hook
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, p *model.Payment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	if m.SaveFunc != nil {
		m.SaveFunc(&cp)
	}
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByGatewayIntent(ctx context.Context, gw model.Gateway, intentID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Gateway == gw && p.GatewayIntentID == intentID && intentID != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByOrder(ctx context.Context, orderID string, gw model.Gateway) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var newest *model.Payment
	for _, p := range m.store {
		if p.OrderID == orderID && p.Gateway == gw {
			if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
				newest = p
			}
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *memPaymentRepo) UpdateIntent(ctx context.Context, id, intentID, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if intentID != "" {
		p.GatewayIntentID = intentID
	}
	if txID != "" {
		p.GatewayTxID = txID
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) TransitionFromPending(ctx context.Context, id string, status model.PaymentStatus, failureReason, txID string) (bool, error) {
	if m.transitionErr != nil {
		return false, m.transitionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if failureReason != "" {
		p.FailureReason = failureReason
	}
	if txID != "" {
		p.GatewayTxID = txID
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// mockGateway lets tests script adapter behavior per call.
type mockGateway struct {
	name             model.Gateway
	CreateIntentFunc func(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error)
}

func (g *mockGateway) Name() model.Gateway { return g.name }

func (g *mockGateway) CreateIntent(ctx context.Context, req adapter.IntentRequest) (*model.IntentResult, error) {
	if g.CreateIntentFunc != nil {
		return g.CreateIntentFunc(ctx, req)
	}
	return &model.IntentResult{
		Gateway:     g.name,
		IntentID:    "intent-1",
		RedirectURL: "https://provider.test/pay/intent-1",
		Status:      model.PaymentStatusPending,
	}, nil
}

func (g *mockGateway) ParseWebhook(r *http.Request, body []byte) (*model.WebhookEvent, error) {
	return nil, domain.ErrMalformedWebhook
}

func (g *mockGateway) VerifySignature(r *http.Request, body []byte) bool { return false }

func (g *mockGateway) MapStatus(providerStatus string) model.PaymentStatus {
	return model.PaymentStatusPending
}

// mockResolver is a closed lookup like the real factory.
type mockResolver struct {
	gateways map[model.Gateway]adapter.PaymentGateway
}

func newMockResolver(gws ...adapter.PaymentGateway) *mockResolver {
	m := &mockResolver{gateways: make(map[model.Gateway]adapter.PaymentGateway)}
	for _, g := range gws {
		m.gateways[g.Name()] = g
	}
	return m
}

func (m *mockResolver) Gateway(gw model.Gateway) (adapter.PaymentGateway, error) {
	g, ok := m.gateways[gw]
	if !ok {
		return nil, domain.ErrUnsupportedGateway
	}
	return g, nil
}
