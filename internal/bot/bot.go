// Package bot wires telebot updates through the middleware chain into the storefront handlers.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/admin"
	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/flow"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/idempotency"
	"github.com/Proton-105/storefront-bot/internal/middleware"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

const defaultPollTimeout = 10 * time.Second

// Deps are the collaborators behind the router. Guard and RateLimit may be nil.
type Deps struct {
	Flow       handlers.Flow
	Panel      handlers.Panel
	Texts      *i18n.Manager
	ErrHandler *apperrors.Handler
	Guard      *idempotency.Guard
	RateLimit  *middleware.RateLimitMiddleware
}

// Bot wraps telebot.Bot with the application router.
type Bot struct {
	telebot *telebot.Bot
	router  *Router
	cancel  context.CancelFunc
	log     *slog.Logger
}

// NewTelebot creates the Telegram client in polling or webhook mode.
func NewTelebot(cfg config.BotConfig) (*telebot.Bot, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	settings := telebot.Settings{Token: cfg.Token}
	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.Listen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: timeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New registers the middleware chain and handlers on tb.
func New(tb *telebot.Bot, deps Deps, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		telebot: tb,
		router:  NewRouter(log),
		cancel:  cancel,
		log:     log,
	}

	b.setupRouter(ctx, deps)
	if tb != nil {
		tb.Handle(telebot.OnText, b.router.Route)
		tb.Handle(telebot.OnCallback, b.router.Route)
		tb.Handle(telebot.OnDocument, b.router.Route)
	}

	return b
}

func (b *Bot) setupRouter(ctx context.Context, deps Deps) {
	r := b.router

	r.Use(ContextMiddleware(ctx))
	r.Use(RecoveryMiddleware(b.log, deps.ErrHandler))
	r.Use(middleware.Idempotency(deps.Guard, b.log))
	r.Use(ErrorHandlingMiddleware(deps.ErrHandler, deps.Texts, b.log))
	r.Use(LoggingMiddleware(b.log))
	if deps.RateLimit != nil {
		r.Use(deps.RateLimit.Handle)
	}
	r.Use(middleware.Metrics)

	r.RegisterCommand(CommandStart, handlers.NewStartHandler(deps.Flow, b.log))
	r.RegisterCommand(CommandCancel, handlers.NewCancelHandler(deps.Flow, b.log))
	r.OnText(handlers.NewTextHandler(deps.Flow))
	r.OnDocument(handlers.NewDocumentHandler(deps.Flow))

	flowCallbacks := handlers.NewFlowCallbackHandler(deps.Flow, b.log)
	for _, unique := range []string{flow.ActionMenu, flow.ActionMethod, flow.ActionPayment, flow.ActionOrder} {
		r.RegisterCallback(unique, flowCallbacks)
	}

	if deps.Panel != nil {
		r.RegisterCommand(CommandAdmin, handlers.NewAdminHandler(deps.Panel, b.log))
		panelCallbacks := handlers.NewPanelCallbackHandler(deps.Panel, b.log)
		for _, unique := range []string{admin.ActionPrefix, moderation.ActionPrefix} {
			r.RegisterCallback(unique, panelCallbacks)
		}
	}
}

// Router exposes the update router, mainly for tests.
func (b *Bot) Router() *Router {
	return b.router
}

// Start runs the telegram bot event loop and blocks until Stop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop stops polling and cancels in-flight handlers, such as a running broadcast.
func (b *Bot) Stop() {
	b.cancel()
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}
