package middleware

import (
	"errors"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/ratelimit"
	"github.com/Proton-105/storefront-bot/internal/state"
)

// RateLimitMiddleware enforces per-user limits, optional per-command buckets and a stricter
// bucket for captcha attempts.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	machine state.StateMachine
	texts   *i18n.Manager
	log     *slog.Logger
}

// NewRateLimitMiddleware builds the middleware. machine may be nil, which disables the captcha bucket.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, machine state.StateMachine, texts *i18n.Manager, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		machine: machine,
		texts:   texts,
		log:     log,
	}
}

// Handle wraps next. Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if m.limiter == nil || m.rules == nil || sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		if !m.allow(c, ratelimit.BucketUser, m.rules.PerUser()) {
			return m.reject(c)
		}

		if name := commandBucket(c); name != "" {
			if rule, ok := m.rules.Bucket(name); ok && !m.allow(c, name, rule) {
				return m.reject(c)
			}
		}

		if m.isCaptchaAttempt(c) {
			if rule, ok := m.rules.Bucket(ratelimit.BucketCaptcha); ok && !m.allow(c, ratelimit.BucketCaptcha, rule) {
				return m.reject(c)
			}
		}

		return next(c)
	}
}

func (m *RateLimitMiddleware) allow(c telebot.Context, bucket string, rule ratelimit.Rule) bool {
	userID := c.Sender().ID

	_, err := m.limiter.Check(handlers.Context(c), ratelimit.UserKey(bucket, userID), rule)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID), slog.String("bucket", bucket))
		return false
	default:
		m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
		return true
	}
}

// isCaptchaAttempt covers /start, which issues a new captcha, and text typed while a captcha is pending.
func (m *RateLimitMiddleware) isCaptchaAttempt(c telebot.Context) bool {
	if c.Callback() != nil {
		return false
	}

	text := c.Text()
	if commandIs(text, "/start") {
		return true
	}
	if m.machine == nil || text == "" || text[0] == '/' {
		return false
	}

	session, err := m.machine.Current(handlers.Context(c), c.Sender().ID)
	if err != nil {
		m.log.Warn("failed to read session for rate limiting", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
		return false
	}
	return session.State == state.StateAwaitingCaptcha
}

func (m *RateLimitMiddleware) reject(c telebot.Context) error {
	msg := m.texts.Translator(c.Sender().LanguageCode).T("common.rate_limited")
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: msg})
	}
	return c.Send(msg)
}

func commandIs(text, cmd string) bool {
	if len(text) < len(cmd) || text[:len(cmd)] != cmd {
		return false
	}
	rest := text[len(cmd):]
	return rest == "" || rest[0] == ' ' || rest[0] == '@'
}

// commandBucket names the per-command bucket for "/start@bot args", i.e. "start".
func commandBucket(c telebot.Context) string {
	if c.Callback() != nil {
		return ""
	}
	text := c.Text()
	if len(text) < 2 || text[0] != '/' {
		return ""
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	name = strings.ToLower(name)
	if name == ratelimit.BucketCaptcha || name == ratelimit.BucketUser {
		return ""
	}
	return name
}
