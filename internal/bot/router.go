package bot

import (
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// Router dispatches commands, callbacks, documents and free text.
type Router struct {
	mu          sync.RWMutex
	commands    map[string]handlers.Handler
	callbacks   map[string]handlers.Handler
	text        handlers.Handler
	document    handlers.Handler
	middlewares []handlers.Middleware
	log         *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:  make(map[string]handlers.Handler),
		callbacks: make(map[string]handlers.Handler),
		log:       log,
	}
}

// RegisterCommand registers a handler for a bot command such as "/start".
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback registers a handler for callback data whose first segment is unique.
func (r *Router) RegisterCallback(unique string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[unique] = h
}

// OnText sets the handler for non-command text.
func (r *Router) OnText(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = h
}

func (r *Router) OnDocument(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.document = h
}

// Use appends a middleware to the chain. The first registered runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	handler := r.resolve(c)
	if handler == nil {
		return nil
	}

	return r.applyMiddlewares(handler)(c)
}

func (r *Router) resolve(c telebot.Context) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cb := c.Callback(); cb != nil {
		unique, _ := transport.SplitAction(cb.Data)
		if h := r.callbacks[unique]; h != nil {
			return h
		}
		r.log.Debug("no callback handler found", slog.String("data", cb.Data))
		return ignoreCallback
	}

	if msg := c.Message(); msg != nil && msg.Document != nil {
		return r.document
	}

	text := c.Text()
	if strings.HasPrefix(text, "/") {
		if h := r.commands[commandName(text)]; h != nil {
			return h
		}
		r.log.Debug("unknown command", slog.String("command", commandName(text)))
		return nil
	}

	if text == "" {
		return nil
	}
	return r.text
}

// commandName strips arguments and the "@botname" suffix: "/start@shop_bot ref" -> "/start".
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

// ignoreCallback answers stale buttons so the client stops its spinner.
func ignoreCallback(c telebot.Context) error {
	return c.Respond()
}

func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	r.mu.RLock()
	middlewares := make([]handlers.Middleware, len(r.middlewares))
	copy(middlewares, r.middlewares)
	r.mu.RUnlock()

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
