package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

// MemoryStore keeps claimed keys in process; used when Redis is disabled.
type MemoryStore struct {
	cache otter.CacheWithVariableTTL[string, struct{}]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = 100_000
	}

	cache, err := otter.MustBuilder[string, struct{}](capacity).WithVariableTTL().Build()
	if err != nil {
		return nil, fmt.Errorf("build idempotency cache with capacity %d: %w", capacity, err)
	}

	return &MemoryStore{cache: cache}, nil
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return s.cache.SetIfAbsent(key, struct{}{}, ttl), nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Close() {
	s.cache.Close()
}
