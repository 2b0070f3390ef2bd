// Package redis provides the Redis client shared by sessions, locks, rate limits and idempotency.
package redis

import (
	"context"
	"fmt"

	"github.com/Proton-105/storefront-bot/pkg/config"
	redis "github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client with instrumentation attached.
type Client struct {
	*redis.Client
}

// New creates a Redis client configured with cfg and verifies the connection with Ping.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.IdleTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(metricsHook{})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb}, nil
}

// Check pings Redis; it satisfies health.CheckFunc.
func (c *Client) Check(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
