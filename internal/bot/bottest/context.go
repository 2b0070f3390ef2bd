// Package bottest provides an in-memory telebot.Context for handler tests.
package bottest

import (
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// Context implements the parts of telebot.Context the bot uses. Calling any
// other method panics.
type Context struct {
	telebot.Context

	mu        sync.Mutex
	update    telebot.Update
	store     map[string]any
	sent      []any
	responses []*telebot.CallbackResponse
}

// Text builds a private-chat text update from user.
func Text(updateID int, user *telebot.User, text string) *Context {
	return &Context{update: telebot.Update{
		ID: updateID,
		Message: &telebot.Message{
			ID:     updateID,
			Sender: user,
			Chat:   &telebot.Chat{ID: user.ID},
			Text:   text,
		},
	}}
}

// Document builds an update carrying a file attachment.
func Document(updateID int, user *telebot.User, doc *telebot.Document) *Context {
	c := Text(updateID, user, "")
	c.update.Message.Document = doc
	return c
}

// Callback builds a button press on message 50 of the user's chat.
func Callback(updateID int, user *telebot.User, data string) *Context {
	return &Context{update: telebot.Update{
		ID: updateID,
		Callback: &telebot.Callback{
			ID:     "cb-" + data,
			Sender: user,
			Data:   data,
			Message: &telebot.Message{
				ID:   50,
				Chat: &telebot.Chat{ID: user.ID},
				Text: "panel",
			},
		},
	}}
}

func (c *Context) Update() telebot.Update {
	return c.update
}

func (c *Context) Sender() *telebot.User {
	switch {
	case c.update.Callback != nil:
		return c.update.Callback.Sender
	case c.update.Message != nil:
		return c.update.Message.Sender
	default:
		return nil
	}
}

func (c *Context) Callback() *telebot.Callback {
	return c.update.Callback
}

func (c *Context) Message() *telebot.Message {
	switch {
	case c.update.Message != nil:
		return c.update.Message
	case c.update.Callback != nil:
		return c.update.Callback.Message
	default:
		return nil
	}
}

func (c *Context) Text() string {
	if m := c.Message(); m != nil {
		return m.Text
	}
	return ""
}

func (c *Context) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

func (c *Context) Send(what any, _ ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, what)
	return nil
}

func (c *Context) Respond(resp ...*telebot.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(resp) == 0 {
		resp = []*telebot.CallbackResponse{{}}
	}
	c.responses = append(c.responses, resp...)
	return nil
}

// Sent returns everything passed to Send.
func (c *Context) Sent() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.sent...)
}

// Responses returns every callback answer.
func (c *Context) Responses() []*telebot.CallbackResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*telebot.CallbackResponse(nil), c.responses...)
}
