package moderation

import (
	"html"
	"strconv"
	"strings"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// Callback prefix and verbs for decision buttons: "pay:confirm:<id>".
const (
	ActionPrefix  = "pay"
	ActionConfirm = "confirm"
	ActionReject  = "reject"
)

// DecisionButtons are the confirm/reject buttons attached to a payment.
func DecisionButtons(tr i18n.Translator, id int64) []transport.Button {
	ref := strconv.FormatInt(id, 10)
	return transport.Row(
		transport.Button{Text: tr.T("notify.confirm_button"), Action: transport.Action(ActionPrefix, ActionConfirm, ref)},
		transport.Button{Text: tr.T("notify.reject_button"), Action: transport.Action(ActionPrefix, ActionReject, ref)},
	)
}

// AdminNotice is the message admins receive for a new payment.
func AdminNotice(tr i18n.Translator, p domain.Payment, firstName string) transport.Message {
	name := firstName
	if name == "" {
		name = p.Username
	}

	comment := p.Comment
	if comment == "" {
		comment = tr.T("admin.no_comment")
	}

	return transport.Message{
		Text: tr.Tf("notify.payment",
			"ID", strconv.FormatInt(p.ID, 10),
			"User", html.EscapeString(name),
			"Handle", html.EscapeString(domain.Handle(p.Username)),
			"UserID", strconv.FormatInt(p.UserID, 10),
			"Amount", domain.FormatAmount(p.Amount),
			"Method", p.Method.Label(),
			"Comment", html.EscapeString(comment),
		),
		HTML:    true,
		Buttons: [][]transport.Button{DecisionButtons(tr, p.ID)},
	}
}

// Receipt confirms the submission to the user.
func Receipt(tr i18n.Translator, p domain.Payment) transport.Message {
	comment := p.Comment
	if comment == "" {
		comment = tr.T("payment.no_comment")
	}

	return transport.Text(tr.Tf("payment.receipt",
		"Amount", domain.FormatAmount(p.Amount),
		"Method", p.Method.Label(),
		"Comment", comment,
		"ID", strconv.FormatInt(p.ID, 10),
	))
}

// Outcome tells the user how their payment was decided.
func Outcome(tr i18n.Translator, p domain.Payment) transport.Message {
	key := "payment.rejected"
	if p.Status == domain.PaymentCompleted {
		key = "payment.approved"
	}

	return transport.Text(tr.Tf(key,
		"ID", strconv.FormatInt(p.ID, 10),
		"Amount", domain.FormatAmount(p.Amount),
	))
}

// Digest lists pending payments for the periodic admin reminder, each with its decision buttons.
func Digest(tr i18n.Translator, page PendingPage) transport.Message {
	lines := []string{tr.Tf("notify.digest", "Count", strconv.Itoa(page.Total)), ""}
	buttons := make([][]transport.Button, 0, len(page.Items))

	for _, item := range page.Items {
		name := item.FirstName
		if name == "" {
			name = domain.Handle(item.Username)
		}
		lines = append(lines, tr.Tf("notify.digest_item",
			"ID", strconv.FormatInt(item.ID, 10),
			"User", html.EscapeString(name),
			"Amount", domain.FormatAmount(item.Amount),
			"Method", item.Method.Label(),
		))
		buttons = append(buttons, DecisionButtons(tr, item.ID))
	}

	if page.Remaining > 0 {
		lines = append(lines, "", tr.Tf("admin.pending_more", "Count", strconv.Itoa(page.Remaining)))
	}

	return transport.Message{
		Text:    strings.Join(lines, "\n"),
		HTML:    true,
		Buttons: buttons,
	}
}
