package redis

import (
	"context"
	"time"
)

// WebhookDedup remembers webhook event ids so redeliveries can be
// short-circuited before touching Postgres. It is an optimization only: the
// payment row's status is the authoritative idempotency boundary, so callers
// treat Redis errors as "not seen" and proceed.
type WebhookDedup struct {
	client RedisClient
	ttl    time.Duration
}

func NewWebhookDedup(client RedisClient, ttl time.Duration) *WebhookDedup {
	return &WebhookDedup{client: client, ttl: ttl}
}

// Seen marks (gateway, eventID) and reports whether it was already marked.
func (d *WebhookDedup) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	key := "webhook_event:" + gateway + ":" + eventID
	set, err := d.client.SetNX(ctx, key, 1, d.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Forget drops the dedup mark, letting a redelivery through. Used when
// processing failed after the mark was taken.
func (d *WebhookDedup) Forget(ctx context.Context, gateway, eventID string) error {
	if eventID == "" {
		return nil
	}
	return d.client.Del(ctx, "webhook_event:"+gateway+":"+eventID)
}
