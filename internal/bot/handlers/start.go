package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewStartHandler restarts the conversation with a fresh captcha.
func NewStartHandler(engine Flow, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender, ok := SenderOf(c)
		if !ok {
			log.Warn("start handler invoked without sender")
			return nil
		}

		return engine.Start(Context(c), sender)
	}
}

// NewAdminHandler opens the operator panel.
func NewAdminHandler(panel Panel, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender, ok := SenderOf(c)
		if !ok {
			log.Warn("admin handler invoked without sender")
			return nil
		}

		return panel.Open(Context(c), sender)
	}
}
