package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewCancelHandler abandons the current flow.
func NewCancelHandler(engine Flow, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender, ok := SenderOf(c)
		if !ok {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		return engine.Cancel(Context(c), sender)
	}
}
