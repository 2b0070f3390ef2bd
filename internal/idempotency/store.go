// Package idempotency makes sure a redelivered update is handled at most once.
package idempotency

import (
	"context"
	"time"
)

// Store records claimed keys until their TTL expires.
type Store interface {
	// Claim marks key as seen and reports whether this call was the first.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a later delivery can be processed again.
	Release(ctx context.Context, key string) error
}
