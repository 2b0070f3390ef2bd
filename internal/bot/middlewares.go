package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/pkg/logger"
)

// ContextMiddleware derives a per-update context with a correlation id from base.
func ContextMiddleware(base context.Context) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			handlers.WithContext(c, logger.WithCorrelationID(base))
			return next(c)
		}
	}
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}
	if errHandler == nil {
		errHandler = apperrors.NewHandler(log, false)
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

				msg, _ := errHandler.Handle(handlers.Context(c), fmt.Errorf("panic recovered: %v", r))
				if sendErr := c.Send(msg); sendErr != nil {
					log.Error("failed to notify user about panic", slog.Any("error", sendErr))
				}
				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports handler failures and tells the user in their language.
// A session held by a concurrent update is answered with a "busy" hint.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler, texts *i18n.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}
	if errHandler == nil {
		errHandler = apperrors.NewHandler(log, false)
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			ctx := handlers.Context(c)
			var userMsg string
			if errors.Is(err, state.ErrStateLocked) {
				log.Warn("session busy", slog.Int64("user_id", senderID(c)), slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)))
				userMsg = texts.Translator(senderLang(c)).T("common.busy")
			} else {
				userMsg, _ = errHandler.Handle(ctx, err)
			}

			if sendErr := c.Send(userMsg); sendErr != nil {
				log.Warn("failed to report error to user", slog.Int64("user_id", senderID(c)), slog.Any("error", sendErr))
			}
			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			start := time.Now()
			attrs := []any{
				slog.Int64("user_id", senderID(c)),
				slog.String("kind", updateKind(c)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(handlers.Context(c))),
			}
			if cb := c.Callback(); cb != nil {
				attrs = append(attrs, slog.String("action", cb.Data))
			}

			err := next(c)

			attrs = append(attrs, slog.Duration("duration", time.Since(start)))
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			log.Debug("handled update", attrs...)

			return err
		}
	}
}

func senderID(c telebot.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func senderLang(c telebot.Context) string {
	if u := c.Sender(); u != nil {
		return u.LanguageCode
	}
	return ""
}

func updateKind(c telebot.Context) string {
	switch {
	case c.Callback() != nil:
		return "callback"
	case c.Message() != nil && c.Message().Document != nil:
		return "document"
	case len(c.Text()) > 0 && c.Text()[0] == '/':
		return "command"
	default:
		return "text"
	}
}
