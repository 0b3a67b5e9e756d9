// Package idempotency gives Pub/Sub consumers at-most-once handling per
// event on top of Redis.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/redis"
)

const (
	statePending = "pending"
	stateDone    = "done"

	defaultLease   = 5 * time.Minute
	releaseTimeout = 2 * time.Second
)

// ErrInFlight means another worker holds the claim for the event. Callers
// nack so Pub/Sub redelivers after the claim settles or lapses.
var ErrInFlight = errors.New("event is being handled by another worker")

// Manager claims an event before handling it and marks it done afterwards.
// A claim that is never completed expires after the lease, so a crashed
// worker does not swallow the event.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done marks for ttl. A zero ttl keeps them forever.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	lease := defaultLease
	if ttl > 0 && ttl < lease {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Once runs fn unless consumer already handled eventID. skipped reports a
// duplicate. A failing fn drops the claim so a redelivery can retry.
func (m *Manager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}

	claimed, err := m.store.SetNX(ctx, key, statePending, m.lease)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return m.settled(ctx, key)
	}

	if err := fn(ctx); err != nil {
		if relErr := m.release(ctx, key); relErr != nil {
			return false, errors.Join(err, relErr)
		}
		return false, err
	}

	// fn already committed; a lost done mark only shortens the window to
	// the lease.
	_ = m.store.Set(ctx, key, stateDone, m.ttl)
	return false, nil
}

func (m *Manager) settled(ctx context.Context, key string) (bool, error) {
	state, err := m.store.Get(ctx, key)
	switch {
	case err != nil && !redis.IsNil(err):
		return false, fmt.Errorf("read %s: %w", key, err)
	case state == "" || state == statePending:
		return false, ErrInFlight
	default:
		return true, nil
	}
}

func (m *Manager) release(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := m.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
