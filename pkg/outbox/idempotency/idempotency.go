// Package idempotency deduplicates at-least-once deliveries. Each consumer
// claims an event id in Redis before handling it; a redelivery of a claimed id
// is skipped until the claim expires.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Store is the subset of the Redis client the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard holds claims for a single consumer under
// `agm:idempotency:evt:<consumer>:<event_id>`.
type Guard struct {
	store    Store
	consumer string
	ttl      time.Duration
}

// NewGuard returns a guard whose claims live for ttl. A zero ttl keeps claims forever.
func NewGuard(store Store, consumer string, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("claim ttl must be non-negative")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl}, nil
}

// Claim reports whether this caller won eventID. false means another delivery
// already handled it or is handling it now.
func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	won, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return won, nil
}

// Release drops the claim so the next delivery is handled again.
func (g *Guard) Release(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

// Run claims eventID and calls fn. When fn fails the claim is released so a
// redelivery can retry. ran is false when the event was a duplicate.
func (g *Guard) Run(ctx context.Context, eventID uuid.UUID, fn func(context.Context) error) (ran bool, err error) {
	won, err := g.Claim(ctx, eventID)
	if err != nil || !won {
		return false, err
	}
	if err := fn(ctx); err != nil {
		if relErr := g.Release(ctx, eventID); relErr != nil {
			err = multierr.Append(err, fmt.Errorf("release claim: %w", relErr))
		}
		return true, err
	}
	return true, nil
}

func (g *Guard) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+g.consumer, eventID.String()), nil
}
