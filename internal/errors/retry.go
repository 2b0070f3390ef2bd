package errors

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// Retry policy for startup connections and other idempotent calls.
const (
	MaxRetries     = 3
	InitialBackoff = 200 * time.Millisecond
	MaxBackoff     = 5 * time.Second
)

// WithRetry runs fn until it succeeds, returns a non-retryable error, or MaxRetries is exhausted.
// The wait between attempts doubles from InitialBackoff and is cut short by ctx.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := InitialBackoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || attempt == MaxRetries || !IsRetryable(err) {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		backoff = min(backoff*2, MaxBackoff)
	}
}

// IsRetryable reports transient failures: AppErrors flagged Retryable, refused or reset
// connections, dial failures and timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Retryable {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
