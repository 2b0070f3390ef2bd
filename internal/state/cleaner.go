package state

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner drops sessions that have been idle longer than the timeout.
// Storage TTLs still apply; the cleaner only shortens abandoned conversations.
type Cleaner struct {
	storage     Storage
	log         *slog.Logger
	idleTimeout time.Duration
	interval    time.Duration
	now         func() time.Time
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(storage Storage, log *slog.Logger, idleTimeout, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &Cleaner{
		storage:     storage,
		log:         log,
		idleTimeout: idleTimeout,
		interval:    interval,
		now:         time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep performs a single cleanup pass and returns how many sessions were cleared.
func (c *Cleaner) Sweep(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	sessions, err := c.storage.List(ctx)
	if err != nil {
		c.log.Error("state cleaner list failed", slog.Any("error", err))
		return 0
	}

	cutoff := c.now().Add(-c.idleTimeout)
	cleared := 0
	for _, session := range sessions {
		if session == nil || !session.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := c.storage.Delete(ctx, session.UserID); err != nil {
			c.log.Error("state cleaner failed to clear session", slog.Int64("user_id", session.UserID), slog.Any("error", err))
			continue
		}
		cleared++
		c.log.Info("stale session cleared",
			slog.Int64("user_id", session.UserID),
			slog.String("state", string(session.State)),
		)
	}

	return cleared
}
