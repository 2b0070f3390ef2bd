package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the storefront bot.
type Config struct {
	AppEnv    string          `mapstructure:"-"`
	App       AppConfig       `mapstructure:"app"`
	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Captcha   CaptchaConfig   `mapstructure:"captcha"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

type AppConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type BotConfig struct {
	Token      string        `mapstructure:"token" validate:"required"`
	Mode       string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WebhookURL string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	Listen     string        `mapstructure:"listen"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres pgx sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

type SessionConfig struct {
	Backend     string        `mapstructure:"backend" validate:"omitempty,oneof=redis memory"`
	TTL         time.Duration `mapstructure:"ttl"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Capacity    int           `mapstructure:"capacity"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	LockWait    time.Duration `mapstructure:"lock_wait"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DSN         string `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string `mapstructure:"environment"`
}

type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

type BroadcastConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" validate:"gte=0"`
	ProgressEvery int     `mapstructure:"progress_every" validate:"gte=0"`
}

type CaptchaConfig struct {
	Length int `mapstructure:"length" validate:"gte=0,lte=10"`
	Width  int `mapstructure:"width" validate:"gte=0"`
	Height int `mapstructure:"height" validate:"gte=0"`
}

// RateLimitConfig rules use the "<limit>/<window>" form, e.g. "30/1m".
type RateLimitConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	PerUser   string            `mapstructure:"per_user"`
	Commands  map[string]string `mapstructure:"commands"`
	Whitelist []int64           `mapstructure:"whitelist"`
}

type JobsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DigestCron  string `mapstructure:"digest_cron"`
	DigestLimit int    `mapstructure:"digest_limit"`
	Concurrency int    `mapstructure:"concurrency"`
}

type I18nConfig struct {
	DefaultLang string `mapstructure:"default_lang"`
}

// ParseRule converts a "<limit>/<window>" rule into its parts.
func ParseRule(rule string) (int, time.Duration, error) {
	rule = strings.TrimSpace(rule)
	limitPart, windowPart, ok := strings.Cut(rule, "/")
	if !ok {
		return 0, 0, fmt.Errorf("rate limit rule %q: expected <limit>/<window>", rule)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(limitPart))
	if err != nil || limit <= 0 {
		return 0, 0, fmt.Errorf("rate limit rule %q: invalid limit", rule)
	}

	window, err := time.ParseDuration(strings.TrimSpace(windowPart))
	if err != nil || window <= 0 {
		return 0, 0, fmt.Errorf("rate limit rule %q: invalid window", rule)
	}

	return limit, window, nil
}
