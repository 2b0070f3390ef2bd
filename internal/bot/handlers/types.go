// Package handlers adapts telebot updates to the conversation engine and the admin panel.
package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/admin"
	"github.com/Proton-105/storefront-bot/internal/flow"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// Handler processes one update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Flow is the customer conversation.
type Flow interface {
	Start(ctx context.Context, sender flow.Sender) error
	Cancel(ctx context.Context, sender flow.Sender) error
	HandleText(ctx context.Context, sender flow.Sender, text string) error
	HandleAction(ctx context.Context, sender flow.Sender, action string) error
	HandleDocument(ctx context.Context, sender flow.Sender, doc flow.Document) error
}

// Panel is the operator surface.
type Panel interface {
	Open(ctx context.Context, sender flow.Sender) error
	HandleAction(ctx context.Context, sender flow.Sender, ref transport.MessageRef, action string) (admin.Reply, error)
}

const contextKey = "storefront.ctx"

// WithContext stores ctx on the update for downstream handlers.
func WithContext(c telebot.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}

// Context returns the update's context, or Background when none was stored.
func Context(c telebot.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// SenderOf describes the user behind the update.
func SenderOf(c telebot.Context) (flow.Sender, bool) {
	u := c.Sender()
	if u == nil {
		return flow.Sender{}, false
	}

	return flow.Sender{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}, true
}

// MessageRefOf points at the message an inline button belongs to.
func MessageRefOf(c telebot.Context) transport.MessageRef {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return transport.MessageRef{}
	}
	return transport.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}
}
