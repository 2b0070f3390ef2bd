package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/bottest"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/idempotency"
	"github.com/Proton-105/storefront-bot/internal/ratelimit"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/pkg/config"
	"github.com/Proton-105/storefront-bot/pkg/logger"
)

var user = &telebot.User{ID: 10, LanguageCode: "ru"}

func counting(calls *int) func(telebot.Context) error {
	return func(telebot.Context) error {
		*calls++
		return nil
	}
}

func TestIdempotency_SkipsRedeliveredUpdate(t *testing.T) {
	store, err := idempotency.NewMemoryStore(10)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	guard := idempotency.NewGuard(store, time.Minute, testLogger())
	calls := 0
	h := Idempotency(guard, testLogger())(counting(&calls))

	require.NoError(t, h(bottest.Text(100, user, "a")))
	require.NoError(t, h(bottest.Text(100, user, "a")))
	require.NoError(t, h(bottest.Text(101, user, "b")))

	assert.Equal(t, 2, calls)
}

func TestIdempotency_NilGuardPassesThrough(t *testing.T) {
	calls := 0
	h := Idempotency(nil, testLogger())(counting(&calls))

	require.NoError(t, h(bottest.Text(1, user, "a")))
	require.NoError(t, h(bottest.Text(1, user, "a")))
	assert.Equal(t, 2, calls)
}

func TestUpdateKey(t *testing.T) {
	assert.Equal(t, "update:5", updateKey(bottest.Text(5, user, "x")))

	cb := bottest.Callback(0, user, "menu:topup")
	assert.Equal(t, "cb:"+idempotency.Key("cb-menu:topup"), updateKey(cb))

	msg := bottest.Text(0, user, "x")
	assert.Equal(t, "", updateKey(msg))
}

type fixture struct {
	mw      *RateLimitMiddleware
	machine state.StateMachine
}

func newRateLimit(t *testing.T, cfg config.RateLimitConfig) fixture {
	t.Helper()

	rules, err := ratelimit.NewRules(cfg)
	require.NoError(t, err)
	texts, err := i18n.Load("ru")
	require.NoError(t, err)
	storage, err := state.NewMemoryStorage(10, time.Hour)
	require.NoError(t, err)
	machine := state.NewStateMachine(storage, nil, testLogger())

	return fixture{
		mw:      NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(), rules, machine, texts, testLogger()),
		machine: machine,
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	f := newRateLimit(t, config.RateLimitConfig{PerUser: "2/1m"})
	calls := 0
	h := f.mw.Handle(counting(&calls))

	var last *bottest.Context
	for i := 1; i <= 3; i++ {
		last = bottest.Text(i, user, "hello")
		require.NoError(t, h(last))
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, []any{"Слишком много запросов, подождите немного"}, last.Sent())

	press := bottest.Callback(4, user, "menu:topup")
	require.NoError(t, h(press))
	require.Len(t, press.Responses(), 1)
	assert.Equal(t, "Слишком много запросов, подождите немного", press.Responses()[0].Text)

	other := &telebot.User{ID: 11}
	require.NoError(t, h(bottest.Text(5, other, "hello")))
	assert.Equal(t, 3, calls)
}

func TestRateLimit_CaptchaBucket(t *testing.T) {
	ctx := context.Background()
	f := newRateLimit(t, config.RateLimitConfig{
		PerUser:  "100/1m",
		Commands: map[string]string{"captcha": "2/1m"},
	})
	calls := 0
	h := f.mw.Handle(counting(&calls))

	require.NoError(t, h(bottest.Text(1, user, "/start")))
	require.NoError(t, f.machine.Do(ctx, user.ID, func(_ context.Context, s *state.Session) error {
		s.Reset(state.StateAwaitingCaptcha)
		return nil
	}))
	require.NoError(t, h(bottest.Text(2, user, "11111")))
	require.NoError(t, h(bottest.Text(3, user, "22222")))
	assert.Equal(t, 2, calls)

	require.NoError(t, f.machine.Reset(ctx, user.ID))
	require.NoError(t, h(bottest.Text(4, user, "free text")))
	require.NoError(t, h(bottest.Callback(5, user, "menu:order")))
	assert.Equal(t, 4, calls)
}

func TestRateLimit_CommandBucket(t *testing.T) {
	f := newRateLimit(t, config.RateLimitConfig{
		PerUser:  "100/1m",
		Commands: map[string]string{"admin": "1/1m"},
	})
	calls := 0
	h := f.mw.Handle(counting(&calls))

	require.NoError(t, h(bottest.Text(1, user, "/admin")))
	second := bottest.Text(2, user, "/ADMIN@shop_bot")
	require.NoError(t, h(second))
	assert.Equal(t, 1, calls)
	assert.Len(t, second.Sent(), 1)

	require.NoError(t, h(bottest.Text(3, user, "/cancel")))
	assert.Equal(t, 2, calls, "commands without a bucket only use the per-user rule")
}

func TestCommandBucket(t *testing.T) {
	assert.Equal(t, "admin", commandBucket(bottest.Text(1, user, "/Admin@bot now")))
	assert.Equal(t, "", commandBucket(bottest.Text(1, user, "/captcha")))
	assert.Equal(t, "", commandBucket(bottest.Text(1, user, "/ ")))
	assert.Equal(t, "", commandBucket(bottest.Text(1, user, "hello")))
	assert.Equal(t, "", commandBucket(bottest.Callback(1, user, "menu:topup")))
}

func TestRateLimit_Whitelist(t *testing.T) {
	f := newRateLimit(t, config.RateLimitConfig{PerUser: "1/1m", Whitelist: []int64{user.ID}})
	calls := 0
	h := f.mw.Handle(counting(&calls))

	for i := 1; i <= 5; i++ {
		require.NoError(t, h(bottest.Text(i, user, "hi")))
	}
	assert.Equal(t, 5, calls)
}

func TestCommandLabel(t *testing.T) {
	tests := []struct {
		name string
		c    telebot.Context
		want string
	}{
		{name: "command", c: bottest.Text(1, user, "/start@shop_bot x"), want: "/start"},
		{name: "text", c: bottest.Text(1, user, "500"), want: "text"},
		{name: "decision", c: bottest.Callback(1, user, "pay:confirm:42"), want: "cb:pay:confirm"},
		{name: "single segment", c: bottest.Callback(1, user, "noop"), want: "cb:noop"},
		{name: "document", c: bottest.Document(1, user, &telebot.Document{MIME: "application/pdf"}), want: "document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandLabel(tt.c))
		})
	}
}

func TestCommandIs(t *testing.T) {
	assert.True(t, commandIs("/start", "/start"))
	assert.True(t, commandIs("/start abc", "/start"))
	assert.True(t, commandIs("/start@bot", "/start"))
	assert.False(t, commandIs("/started", "/start"))
	assert.False(t, commandIs("start", "/start"))
}

func TestHTTPLogging_KeepsStatus(t *testing.T) {
	var seen string
	handler := logger.Middleware(New(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", rec.Body.String())
	assert.NotEmpty(t, seen)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
