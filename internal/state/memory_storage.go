package state

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

// MemoryStorage keeps sessions in a bounded in-process cache with a TTL.
// Sessions are lost on restart.
type MemoryStorage struct {
	cache otter.Cache[int64, Session]
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(capacity int, ttl time.Duration) (*MemoryStorage, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	cache, err := otter.MustBuilder[int64, Session](capacity).WithTTL(ttl).Build()
	if err != nil {
		return nil, fmt.Errorf("build session cache with capacity %d: %w", capacity, err)
	}

	return &MemoryStorage{cache: cache}, nil
}

func (s *MemoryStorage) Get(_ context.Context, userID int64) (*Session, error) {
	session, ok := s.cache.Get(userID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemoryStorage) Save(_ context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()
	if !s.cache.Set(session.UserID, *session.Clone()) {
		return fmt.Errorf("session cache rejected user %d", session.UserID)
	}
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, userID int64) error {
	s.cache.Delete(userID)
	return nil
}

func (s *MemoryStorage) List(_ context.Context) ([]*Session, error) {
	out := make([]*Session, 0, s.cache.Size())
	s.cache.Range(func(_ int64, session Session) bool {
		out = append(out, session.Clone())
		return true
	})
	return out, nil
}

// Close stops the cache's background maintenance.
func (s *MemoryStorage) Close() {
	s.cache.Close()
}
