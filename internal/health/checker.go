// Package health aggregates dependency checks for the readiness probe.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

const defaultTimeout = 3 * time.Second

// StatusOK is reported for components whose check passed.
const StatusOK = "OK"

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Report maps component names to StatusOK or the failure message.
type Report map[string]string

// Healthy reports whether every component passed.
func (r Report) Healthy() bool {
	for _, status := range r {
		if status != StatusOK {
			return false
		}
	}
	return true
}

// Failed lists the failing components in name order.
func (r Report) Failed() []string {
	var names []string
	for name, status := range r {
		if status != StatusOK {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Checkable
	timeout time.Duration
	log     *slog.Logger
}

// NewChecker instantiates a Checker; every check gets at most timeout to finish.
func NewChecker(timeout time.Duration, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Checker{
		checks:  make(map[string]Checkable),
		timeout: timeout,
		log:     log,
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// Check runs all registered checks concurrently.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Checkable, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	report := make(Report, len(checks))

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Checkable) {
			defer wg.Done()

			status := StatusOK
			if err := check.HealthCheck(ctx); err != nil {
				status = err.Error()
				c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
			}

			mu.Lock()
			report[name] = status
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()
	return report
}

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker verifies connectivity to the database.
type DBChecker struct {
	db Pinger
}

func NewDBChecker(db Pinger) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return errors.New("database is not configured")
	}
	return c.db.PingContext(ctx)
}

// RedisPinger abstracts the subset of redis.Client used for health checks.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger RedisPinger
}

func NewRedisChecker(pinger RedisPinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING command against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker reports the bot unhealthy while it is not initialized or its breaker is open.
type TelegramChecker struct {
	bot     *telebot.Bot
	breaker *apperrors.CircuitBreaker
}

// NewTelegramChecker constructs a TelegramChecker. breaker may be nil.
func NewTelegramChecker(bot *telebot.Bot, breaker *apperrors.CircuitBreaker) *TelegramChecker {
	return &TelegramChecker{bot: bot, breaker: breaker}
}

func (c *TelegramChecker) HealthCheck(context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized")
	}
	if c.breaker != nil && c.breaker.State() == apperrors.BreakerOpen {
		return apperrors.ErrCircuitOpen
	}
	return nil
}
