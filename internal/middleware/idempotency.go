// Package middleware holds the update middlewares shared by the bot router and the ops HTTP server.
package middleware

import (
	"context"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	"github.com/Proton-105/storefront-bot/internal/idempotency"
)

// Idempotency drops updates Telegram delivers more than once.
func Idempotency(guard *idempotency.Guard, log *slog.Logger) handlers.Middleware {
	if guard == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			_, err := guard.Run(handlers.Context(c), key, func(context.Context) error {
				return next(c)
			})
			return err
		}
	}
}

// updateKey prefers the update id; callbacks without one fall back to the callback id.
func updateKey(c telebot.Context) string {
	if id := c.Update().ID; id != 0 {
		return "update:" + strconv.Itoa(id)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return "cb:" + idempotency.Key(cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.Chat != nil && msg.ID != 0 {
		return "msg:" + strconv.FormatInt(msg.Chat.ID, 10) + ":" + strconv.Itoa(msg.ID)
	}

	return ""
}
