package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewFlowCallbackHandler handles buttons of the customer conversation.
func NewFlowCallbackHandler(engine Flow, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		sender, ok := SenderOf(c)
		if cb == nil || !ok {
			return nil
		}

		err := engine.HandleAction(Context(c), sender, cb.Data)
		respond(c, log, &telebot.CallbackResponse{})
		return err
	}
}

// NewPanelCallbackHandler handles admin panel and moderation buttons and answers them with
// the panel's toast or alert.
func NewPanelCallbackHandler(panel Panel, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		sender, ok := SenderOf(c)
		if cb == nil || !ok {
			return nil
		}

		reply, err := panel.HandleAction(Context(c), sender, MessageRefOf(c), cb.Data)
		respond(c, log, &telebot.CallbackResponse{Text: reply.Text, ShowAlert: reply.Alert})
		return err
	}
}

func respond(c telebot.Context, log *slog.Logger, resp *telebot.CallbackResponse) {
	if err := c.Respond(resp); err != nil {
		log.Debug("failed to answer callback", slog.Any("error", err))
	}
}
