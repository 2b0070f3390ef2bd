package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process sliding window used without Redis and as the Redis fallback.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check records the request when allowed; rejected requests do not extend the window.
func (m *MemoryLimiter) Check(_ context.Context, key string, rule Rule) (*Result, error) {
	now := m.now()
	start := now.Add(-rule.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := keepRecent(m.windows[key], start)
	allowed := len(hits) < rule.Limit
	if allowed {
		hits = append(hits, now)
	}
	m.windows[key] = hits

	resetAt := now.Add(rule.Window)
	if len(hits) > 0 {
		resetAt = hits[0].Add(rule.Window)
	}

	result := &Result{
		Allowed:   allowed,
		Remaining: max(rule.Limit-len(hits), 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Cleanup drops keys whose last request is older than maxAge and returns how many were removed.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.windows {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func keepRecent(hits []time.Time, start time.Time) []time.Time {
	first := 0
	for first < len(hits) && !hits[first].After(start) {
		first++
	}
	if first == 0 {
		return hits
	}
	return append(hits[:0], hits[first:]...)
}
