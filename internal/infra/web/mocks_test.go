//go:build !integration

package web_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/domain/model"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// memPaymentRepo backs the end-to-end webhook tests with an in-memory store.
type memPaymentRepo struct {
	mu    sync.Mutex
	store map[string]*model.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
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
	return nil
}

func (m *memPaymentRepo) TransitionFromPending(ctx context.Context, id string, status model.PaymentStatus, failureReason, txID string) (bool, error) {
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
	return true, nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	return nil, nil
}

// memDedup mimics the redis-backed cache without a server.
type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDedup() *memDedup {
	return &memDedup{seen: make(map[string]bool)}
}

func (d *memDedup) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := gateway + ":" + eventID
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

func (d *memDedup) Forget(ctx context.Context, gateway, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, gateway+":"+eventID)
	return nil
}

// signedFlowForm builds a confirmation body carrying a valid s parameter.
func signedFlowForm(secret string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf []byte
	for _, k := range keys {
		buf = append(buf, k...)
		buf = append(buf, fields[k]...)
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(buf)

	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	vals.Set("s", hex.EncodeToString(h.Sum(nil)))
	return vals.Encode()
}

// signIPN computes the x-nowpayments-sig value for a JSON body.
func signIPN(t *testing.T, secret string, body []byte) string {
	t.Helper()
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("sign ipn: %v", err)
	}
	sorted, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("sign ipn: %v", err)
	}
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(sorted)
	return hex.EncodeToString(h.Sum(nil))
}
