// Package telegram implements transport.Transport on top of telebot.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// botAPI is the subset of *telebot.Bot the adapter needs.
type botAPI interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Delete(msg telebot.Editable) error
}

// Transport sends through the Bot API behind a circuit breaker.
type Transport struct {
	api     botAPI
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

var _ transport.Transport = (*Transport)(nil)

func New(api botAPI, breaker *apperrors.CircuitBreaker, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}
	if breaker == nil {
		breaker = apperrors.NewCircuitBreaker(BreakerSettings())
	}
	return &Transport{api: api, breaker: breaker, log: log}
}

// BreakerSettings returns breaker settings that ignore per-recipient failures,
// so a broadcast to many blocked users does not trip the breaker.
func BreakerSettings() apperrors.BreakerSettings {
	settings := apperrors.DefaultBreakerSettings()
	settings.IsFailure = func(err error) bool {
		return !IsRecipientError(err)
	}
	return settings
}

// IsRecipientError reports failures caused by the recipient rather than the platform.
func IsRecipientError(err error) bool {
	return errors.Is(err, telebot.ErrBlockedByUser) ||
		errors.Is(err, telebot.ErrChatNotFound) ||
		errors.Is(err, telebot.ErrUserIsDeactivated) ||
		errors.Is(err, telebot.ErrNotStartedByUser)
}

func (t *Transport) SendText(ctx context.Context, chatID int64, msg transport.Message) (transport.MessageRef, error) {
	opts, err := sendOptions(msg)
	if err != nil {
		return transport.MessageRef{}, apperrors.NewTransportError("send text", err)
	}

	var what interface{} = msg.Text
	if msg.DocumentID != "" {
		what = &telebot.Document{File: telebot.File{FileID: msg.DocumentID}, Caption: msg.Text}
	}

	return t.send(ctx, "send text", chatID, what, opts)
}

func (t *Transport) SendImage(ctx context.Context, chatID int64, img transport.Image) (transport.MessageRef, error) {
	opts, err := sendOptions(img.Caption)
	if err != nil {
		return transport.MessageRef{}, apperrors.NewTransportError("send image", err)
	}

	photo := &telebot.Photo{
		File:    telebot.FromReader(bytes.NewReader(img.Data)),
		Caption: img.Caption.Text,
	}

	return t.send(ctx, "send image", chatID, photo, opts)
}

func (t *Transport) EditText(ctx context.Context, ref transport.MessageRef, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts, err := sendOptions(msg)
	if err != nil {
		return apperrors.NewTransportError("edit text", err)
	}

	err = t.breaker.Call(func() error {
		_, editErr := t.api.Edit(stored(ref), msg.Text, opts)
		if errors.Is(editErr, telebot.ErrMessageNotModified) || errors.Is(editErr, telebot.ErrTrueResult) {
			return nil
		}
		return editErr
	})
	if err != nil {
		t.log.Warn("telegram edit failed",
			slog.Int64("chat_id", ref.ChatID),
			slog.Int("message_id", ref.MessageID),
			slog.Any("error", err),
		)
		return apperrors.NewTransportError("edit text", err)
	}

	return nil
}

func (t *Transport) Delete(ctx context.Context, ref transport.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.breaker.Call(func() error { return t.api.Delete(stored(ref)) }); err != nil {
		return apperrors.NewTransportError("delete", err)
	}

	return nil
}

func (t *Transport) send(ctx context.Context, op string, chatID int64, what interface{}, opts *telebot.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}

	var sent *telebot.Message
	err := t.breaker.Call(func() error {
		var sendErr error
		sent, sendErr = t.api.Send(telebot.ChatID(chatID), what, opts)
		return sendErr
	})
	if err != nil {
		level := slog.LevelWarn
		if !IsRecipientError(err) {
			level = slog.LevelError
		}
		t.log.Log(ctx, level, "telegram send failed",
			slog.String("op", op),
			slog.Int64("chat_id", chatID),
			slog.Any("error", err),
		)
		return transport.MessageRef{}, apperrors.NewTransportError(op, err)
	}

	ref := transport.MessageRef{ChatID: chatID}
	if sent != nil {
		ref.MessageID = sent.ID
	}
	return ref, nil
}

func sendOptions(msg transport.Message) (*telebot.SendOptions, error) {
	markup, err := keyboard.Markup(msg.Buttons)
	if err != nil {
		return nil, err
	}

	opts := &telebot.SendOptions{ReplyMarkup: markup}
	if msg.HTML {
		opts.ParseMode = telebot.ModeHTML
	}
	return opts, nil
}

func stored(ref transport.MessageRef) telebot.StoredMessage {
	return telebot.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}
}
