package ratelimit

import (
	"fmt"
	"time"

	"github.com/Proton-105/storefront-bot/pkg/config"
)

// Buckets known to the update middleware.
const (
	BucketUser    = "user"
	BucketCaptcha = "captcha"
)

var (
	defaultPerUser = Rule{Limit: 30, Window: time.Minute}
	defaultCaptcha = Rule{Limit: 10, Window: time.Minute}
)

// Rule allows Limit requests per sliding Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Rules holds the parsed rate limit configuration.
type Rules struct {
	perUser   Rule
	buckets   map[string]Rule
	whitelist map[int64]struct{}
}

// NewRules parses cfg. Missing per-user and captcha rules get defaults.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	r := &Rules{
		perUser:   defaultPerUser,
		buckets:   map[string]Rule{BucketCaptcha: defaultCaptcha},
		whitelist: make(map[int64]struct{}, len(cfg.Whitelist)),
	}

	if cfg.PerUser != "" {
		rule, err := parseRule(cfg.PerUser)
		if err != nil {
			return nil, fmt.Errorf("per_user: %w", err)
		}
		r.perUser = rule
	}

	for name, raw := range cfg.Commands {
		rule, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("commands.%s: %w", name, err)
		}
		r.buckets[name] = rule
	}

	for _, id := range cfg.Whitelist {
		r.whitelist[id] = struct{}{}
	}

	return r, nil
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

func (r *Rules) PerUser() Rule {
	return r.perUser
}

// Bucket returns the extra rule for a named bucket such as captcha attempts.
func (r *Rules) Bucket(name string) (Rule, bool) {
	rule, ok := r.buckets[name]
	return rule, ok
}

func parseRule(raw string) (Rule, error) {
	limit, window, err := config.ParseRule(raw)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Limit: limit, Window: window}, nil
}
