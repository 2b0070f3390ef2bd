package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	"github.com/Proton-105/storefront-bot/internal/transport"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(commandLabel(c), status, time.Since(start))

		return err
	}
}

// commandLabel keeps label cardinality bounded: callbacks are reduced to their
// first two segments and free text is a single label.
func commandLabel(c telebot.Context) string {
	if cb := c.Callback(); cb != nil {
		unique, rest := transport.SplitAction(cb.Data)
		verb, _ := transport.SplitAction(rest)
		if verb == "" {
			return "cb:" + unique
		}
		return "cb:" + unique + ":" + verb
	}

	if msg := c.Message(); msg != nil && msg.Document != nil {
		return "document"
	}

	text := c.Text()
	if strings.HasPrefix(text, "/") {
		name, _, _ := strings.Cut(text, " ")
		name, _, _ = strings.Cut(name, "@")
		return name
	}
	if text != "" {
		return "text"
	}
	return "unknown"
}
