package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "storefront:ratelimit:"

// RedisLimiter implements Limiter using Redis sorted sets and a sliding window,
// so limits hold across replicas. Rejected requests still count towards the window.
type RedisLimiter struct {
	client redis.UniversalClient
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.UniversalClient, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, rule Rule) (*Result, error) {
	now := time.Now()
	if rule.Limit <= 0 {
		return &Result{Allowed: false, ResetAt: now.Add(rule.Window)}, ErrLimitExceeded
	}

	redisKey := redisKeyPrefix + key
	cutoff := now.Add(-rule.Window).UnixMilli()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%d", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rule.Window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count := int(countCmd.Val())
	result := &Result{
		Allowed:   count <= rule.Limit,
		Remaining: max(rule.Limit-count, 0),
		ResetAt:   now.Add(rule.Window),
	}
	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}
