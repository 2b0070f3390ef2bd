// Package transport abstracts the chat platform: sending, editing and deleting messages.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ActionSeparator  = ":"
	ActionLimitBytes = 64
)

// ErrActionTooLong is returned for callback actions the platform would reject.
var ErrActionTooLong = errors.New("action exceeds callback data limit")

// Button is an inline button carrying a callback action.
type Button struct {
	Text   string
	Action string
}

// Message is a text message with optional inline buttons.
// When DocumentID is set the text becomes the caption of that document.
type Message struct {
	Text       string
	Buttons    [][]Button
	HTML       bool
	DocumentID string
}

// Image is an in-memory picture sent with a caption.
type Image struct {
	Data    []byte
	Name    string
	Caption Message
}

// MessageRef identifies a sent message for later edits or deletion.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Transport delivers messages to chats.
type Transport interface {
	SendText(ctx context.Context, chatID int64, msg Message) (MessageRef, error)
	SendImage(ctx context.Context, chatID int64, img Image) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, msg Message) error
	Delete(ctx context.Context, ref MessageRef) error
}

// Text builds a plain message.
func Text(text string) Message {
	return Message{Text: text}
}

// Row is shorthand for a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Action joins a handler prefix and its arguments, e.g. Action("pay", "confirm", "42") is "pay:confirm:42".
func Action(unique string, args ...string) string {
	if len(args) == 0 {
		return unique
	}
	return unique + ActionSeparator + strings.Join(args, ActionSeparator)
}

// SplitAction separates the handler prefix from the remaining data.
func SplitAction(action string) (unique, data string) {
	unique, data, _ = strings.Cut(action, ActionSeparator)
	return unique, data
}

// ValidateAction checks the platform's callback size limit.
func ValidateAction(action string) error {
	if action == "" {
		return errors.New("action is empty")
	}
	if len(action) > ActionLimitBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrActionTooLong, len(action), ActionLimitBytes)
	}
	return nil
}
