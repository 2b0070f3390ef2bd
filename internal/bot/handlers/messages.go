package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/flow"
)

// NewTextHandler feeds free text into the current step.
func NewTextHandler(engine Flow) Handler {
	return func(c telebot.Context) error {
		sender, ok := SenderOf(c)
		if !ok {
			return nil
		}
		return engine.HandleText(Context(c), sender, c.Text())
	}
}

// NewDocumentHandler forwards file attachments, such as payment proofs.
func NewDocumentHandler(engine Flow) Handler {
	return func(c telebot.Context) error {
		sender, ok := SenderOf(c)
		if !ok {
			return nil
		}

		msg := c.Message()
		if msg == nil || msg.Document == nil {
			return nil
		}

		return engine.HandleDocument(Context(c), sender, flow.Document{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MIME:     msg.Document.MIME,
		})
	}
}
