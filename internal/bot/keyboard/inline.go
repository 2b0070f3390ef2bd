package keyboard

import (
	"fmt"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/transport"
)

// InlineKeyboardBuilder accumulates rows of transport buttons before rendering telebot markup.
type InlineKeyboardBuilder struct {
	rows [][]transport.Button
}

// NewInlineKeyboard creates an empty builder.
func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{rows: make([][]transport.Button, 0)}
}

// AddRow appends a row. Empty rows are dropped.
func (b *InlineKeyboardBuilder) AddRow(buttons ...transport.Button) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]transport.Button, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// AddRows appends every non-empty row.
func (b *InlineKeyboardBuilder) AddRows(rows [][]transport.Button) *InlineKeyboardBuilder {
	for _, row := range rows {
		b.AddRow(row...)
	}
	return b
}

// Build renders inline markup. The button action is used verbatim as callback data,
// so it must fit the platform limit. Build returns nil markup when there are no rows.
func (b *InlineKeyboardBuilder) Build() (*telebot.ReplyMarkup, error) {
	if len(b.rows) == 0 {
		return nil, nil
	}

	inline := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		inline[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			if err := transport.ValidateAction(btn.Action); err != nil {
				return nil, fmt.Errorf("button %q: %w", btn.Text, err)
			}
			inline[i][j] = telebot.InlineButton{
				Text: btn.Text,
				Data: btn.Action,
			}
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inline}, nil
}

// Markup is a shorthand for NewInlineKeyboard().AddRows(rows).Build().
func Markup(rows [][]transport.Button) (*telebot.ReplyMarkup, error) {
	return NewInlineKeyboard().AddRows(rows).Build()
}
