package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner periodically evicts idle keys from the in-memory limiter.
// Redis keys expire on their own.
type Cleaner struct {
	limiter  *MemoryLimiter
	interval time.Duration
	maxAge   time.Duration
	log      *slog.Logger
}

func NewCleaner(limiter *MemoryLimiter, interval, maxAge time.Duration, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}

	return &Cleaner{
		limiter:  limiter,
		interval: interval,
		maxAge:   maxAge,
		log:      log,
	}
}

// Run blocks until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.limiter == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped")
			return
		case <-ticker.C:
			if removed := c.limiter.Cleanup(c.maxAge); removed > 0 {
				c.log.Debug("rate limit keys cleaned", slog.Int("keys_removed", removed))
			}
		}
	}
}
