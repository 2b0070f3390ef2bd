package idempotency

import (
	"context"
	"log/slog"
	"time"
)

const DefaultTTL = 24 * time.Hour

// Guard runs a function at most once per key within the TTL.
type Guard struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

func NewGuard(store Store, ttl time.Duration, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Guard{
		store: store,
		ttl:   ttl,
		log:   log,
	}
}

// Run calls fn unless key was already claimed and reports whether fn ran.
// A failed fn releases the key so a redelivery is retried. When the store is
// unavailable fn runs anyway.
func (g *Guard) Run(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	if g == nil || g.store == nil || key == "" {
		return true, fn(ctx)
	}

	claimed, err := g.store.Claim(ctx, key, g.ttl)
	if err != nil {
		g.log.Warn("idempotency store unavailable, processing update", slog.String("key", key), slog.Any("error", err))
		return true, fn(ctx)
	}
	if !claimed {
		g.log.Info("duplicate update skipped", slog.String("key", key))
		return false, nil
	}

	if err := fn(ctx); err != nil {
		if releaseErr := g.store.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			g.log.Warn("failed to release idempotency key", slog.String("key", key), slog.Any("error", releaseErr))
		}
		return true, err
	}

	return true, nil
}
