package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// PaginationButtons returns up to three buttons (prev, current page, next)
// whose actions are "<action>:<page>".
func PaginationButtons(t i18n.Translator, action string, page, totalPages int) []transport.Button {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	buttons := make([]transport.Button, 0, 3)

	if page > 1 {
		buttons = append(buttons, transport.Button{
			Text:   translated(t, "pagination.prev", "◀️ Prev"),
			Action: transport.Action(action, strconv.Itoa(page-1)),
		})
	}

	buttons = append(buttons, transport.Button{
		Text:   paginationLabel(t, page, totalPages),
		Action: transport.Action(action, strconv.Itoa(page)),
	})

	if page < totalPages {
		buttons = append(buttons, transport.Button{
			Text:   translated(t, "pagination.next", "Next ▶️"),
			Action: transport.Action(action, strconv.Itoa(page+1)),
		})
	}

	return buttons
}

// TotalPages returns how many pages of size perPage hold total items, at least one.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := strings.TrimSpace(t.T(key))
	if text == "" || text == key {
		return fallback
	}

	return text
}

func paginationLabel(t i18n.Translator, page, total int) string {
	if t == nil {
		return fmt.Sprintf("Page %d/%d", page, total)
	}

	label := t.Tf("pagination.page", "Page", strconv.Itoa(page), "Total", strconv.Itoa(total))
	if label == "" || label == "pagination.page" || strings.Contains(label, "{{") {
		return fmt.Sprintf("Page %d/%d", page, total)
	}

	return label
}
