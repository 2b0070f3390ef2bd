package ratelimit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	backendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_redis_errors_total",
		Help: "Redis errors that made the limiter fall back to memory.",
	})
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter when the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

var _ Limiter = (*AdaptiveLimiter)(nil)

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check uses the primary backend; on backend errors the fallback enforces half the limit.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, rule Rule) (*Result, error) {
	result, err := a.primary.Check(ctx, key, rule)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		checksTotal.WithLabelValues("redis", resultLabel(err)).Inc()
		return result, err
	}

	backendErrorsTotal.Inc()
	a.log.Warn("redis limiter failed, falling back to memory", slog.String("key", key), slog.Any("error", err))

	strict := Rule{Limit: max(rule.Limit/2, 1), Window: rule.Window}
	result, err = a.fallback.Check(ctx, key, strict)
	checksTotal.WithLabelValues("memory", resultLabel(err)).Inc()
	return result, err
}

func resultLabel(err error) string {
	if err != nil {
		return "rejected"
	}
	return "allowed"
}
