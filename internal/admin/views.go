package admin

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/broadcast"
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// Callback prefix and panel sections: "admin:<section>[:arg]".
const (
	ActionPrefix = "admin"

	SectionHome             = "home"
	SectionStats            = "stats"
	SectionBroadcast        = "broadcast"
	SectionBroadcastConfirm = "broadcast_confirm"
	SectionUsers            = "users"
	SectionMessage          = "message"
	SectionPending          = "pending"
	SectionCheckNow         = "check_now"
	SectionNotify           = "notify"
	SectionNotifyOn         = "notify_on"
	SectionNotifyOff        = "notify_off"
	SectionClose            = "close"
	SectionBack             = "back"
	SectionCancel           = "cancel"
)

const (
	usersPreview    = 10
	pendingPageSize = 5
	dateLayout      = "02.01.2006 15:04"
)

func button(tr i18n.Translator, key, section string, args ...string) transport.Button {
	return transport.Button{
		Text:   tr.T(key),
		Action: transport.Action(ActionPrefix, append([]string{section}, args...)...),
	}
}

func backRow(tr i18n.Translator) []transport.Button {
	return transport.Row(button(tr, "admin.btn_back", SectionHome))
}

func cancelRow(tr i18n.Translator) []transport.Button {
	return transport.Row(button(tr, "admin.btn_cancel", SectionCancel))
}

// HomeView is the panel entry screen.
func HomeView(tr i18n.Translator) transport.Message {
	return transport.Message{
		Text: tr.T("admin.home"),
		HTML: true,
		Buttons: [][]transport.Button{
			transport.Row(button(tr, "admin.btn_stats", SectionStats), button(tr, "admin.btn_broadcast", SectionBroadcast)),
			transport.Row(button(tr, "admin.btn_users", SectionUsers), button(tr, "admin.btn_message", SectionMessage)),
			transport.Row(button(tr, "admin.btn_pending", SectionPending), button(tr, "admin.btn_check", SectionCheckNow)),
			transport.Row(button(tr, "admin.btn_notify", SectionNotify)),
			transport.Row(button(tr, "admin.btn_close", SectionClose)),
		},
	}
}

func StatsView(tr i18n.Translator, users domain.UserStats, payments domain.PaymentStats) transport.Message {
	return transport.Message{
		Text: tr.Tf("admin.stats",
			"UsersTotal", strconv.Itoa(users.Total),
			"UsersToday", strconv.Itoa(users.Today),
			"UsersWeek", strconv.Itoa(users.Week),
			"PaymentsTotal", strconv.Itoa(payments.Total),
			"PaymentsToday", strconv.Itoa(payments.Today),
			"Pending", strconv.Itoa(payments.Pending),
			"CompletedToday", domain.FormatAmount(payments.CompletedToday),
			"CompletedTotal", domain.FormatAmount(payments.CompletedTotal),
		),
		HTML:    true,
		Buttons: [][]transport.Button{backRow(tr)},
	}
}

func BroadcastPrompt(tr i18n.Translator) transport.Message {
	return transport.Message{Text: tr.T("admin.broadcast_prompt"), Buttons: [][]transport.Button{cancelRow(tr)}}
}

func BroadcastPreview(tr i18n.Translator, text string, recipients int) transport.Message {
	return transport.Message{
		Text: tr.Tf("admin.broadcast_preview",
			"Text", html.EscapeString(text),
			"Count", strconv.Itoa(recipients),
		),
		HTML: true,
		Buttons: [][]transport.Button{
			transport.Row(button(tr, "admin.btn_send", SectionBroadcastConfirm), button(tr, "admin.btn_cancel", SectionCancel)),
		},
	}
}

func BroadcastStarted(tr i18n.Translator, total int) transport.Message {
	return transport.Text(tr.Tf("admin.broadcast_started", "Total", strconv.Itoa(total)))
}

func BroadcastProgress(tr i18n.Translator, s broadcast.Summary) transport.Message {
	return transport.Text(tr.Tf("admin.broadcast_progress",
		"Processed", strconv.Itoa(s.Processed()),
		"Total", strconv.Itoa(s.Total),
		"Succeeded", strconv.Itoa(s.Succeeded),
		"Failed", strconv.Itoa(s.Failed),
	))
}

func BroadcastDone(tr i18n.Translator, s broadcast.Summary) transport.Message {
	return transport.Message{
		Text: tr.Tf("admin.broadcast_done",
			"Total", strconv.Itoa(s.Total),
			"Succeeded", strconv.Itoa(s.Succeeded),
			"Failed", strconv.Itoa(s.Failed),
			"Skipped", strconv.Itoa(s.Skipped),
			"Rate", strconv.FormatFloat(s.DeliveryRate(), 'f', -1, 64),
		),
		Buttons: [][]transport.Button{backRow(tr)},
	}
}

// UsersView lists the first users and how many are not shown.
func UsersView(tr i18n.Translator, users []domain.User, total int) transport.Message {
	if len(users) == 0 {
		return transport.Message{Text: tr.T("admin.users_empty"), Buttons: [][]transport.Button{backRow(tr)}}
	}

	lines := make([]string, 0, len(users)+1)
	for i, u := range users {
		lines = append(lines, tr.Tf("admin.user_line",
			"N", strconv.Itoa(i+1),
			"Name", html.EscapeString(u.DisplayName()),
			"Handle", html.EscapeString(domain.Handle(u.Username)),
			"ID", strconv.FormatInt(u.ID, 10),
		))
	}
	if rest := total - len(users); rest > 0 {
		lines = append(lines, "", tr.Tf("admin.users_more", "Count", strconv.Itoa(rest)))
	}

	return transport.Message{
		Text:    tr.Tf("admin.users", "Total", strconv.Itoa(total), "List", strings.Join(lines, "\n")),
		HTML:    true,
		Buttons: [][]transport.Button{backRow(tr)},
	}
}

func MessagePrompt(tr i18n.Translator) transport.Message {
	return transport.Message{Text: tr.T("admin.message_prompt"), Buttons: [][]transport.Button{cancelRow(tr)}}
}

// PendingView renders one page of the moderation queue with per-payment decision buttons.
func PendingView(tr i18n.Translator, page moderation.PendingPage, pageNum int, loc *time.Location) transport.Message {
	if page.Total == 0 {
		return transport.Message{Text: tr.T("admin.pending_empty"), Buttons: [][]transport.Button{backRow(tr)}}
	}

	parts := []string{tr.Tf("admin.pending_header", "Total", strconv.Itoa(page.Total))}
	rows := make([][]transport.Button, 0, len(page.Items)+2)

	for _, item := range page.Items {
		name := item.FirstName
		if name == "" {
			name = domain.Handle(item.Username)
		}
		comment := item.Comment
		if comment == "" {
			comment = tr.T("admin.no_comment")
		}

		parts = append(parts, tr.Tf("admin.pending_item",
			"ID", strconv.FormatInt(item.ID, 10),
			"User", html.EscapeString(name),
			"Amount", domain.FormatAmount(item.Amount),
			"Method", item.Method.Label(),
			"Comment", html.EscapeString(comment),
			"Date", item.SubmittedAt.In(loc).Format(dateLayout),
		))

		ref := strconv.FormatInt(item.ID, 10)
		rows = append(rows, transport.Row(
			transport.Button{
				Text:   fmt.Sprintf("%s #%d", tr.T("notify.confirm_button"), item.ID),
				Action: transport.Action(moderation.ActionPrefix, moderation.ActionConfirm, ref),
			},
			transport.Button{
				Text:   fmt.Sprintf("%s #%d", tr.T("notify.reject_button"), item.ID),
				Action: transport.Action(moderation.ActionPrefix, moderation.ActionReject, ref),
			},
		))
	}

	if page.Remaining > 0 {
		parts = append(parts, tr.Tf("admin.pending_more", "Count", strconv.Itoa(page.Remaining)))
	}

	totalPages := keyboard.TotalPages(page.Total, pendingPageSize)
	if totalPages > 1 {
		rows = append(rows, keyboard.PaginationButtons(tr, transport.Action(ActionPrefix, SectionPending), pageNum, totalPages))
	}
	rows = append(rows, backRow(tr))

	return transport.Message{Text: strings.Join(parts, "\n\n"), HTML: true, Buttons: rows}
}

func NotifySettingsView(tr i18n.Translator, s domain.AdminSettings) transport.Message {
	flag := func(on bool) string {
		if on {
			return tr.T("admin.on")
		}
		return tr.T("admin.off")
	}

	return transport.Message{
		Text: tr.Tf("admin.notify_settings",
			"Payments", flag(s.NotifyPayments),
			"Users", flag(s.NotifyNewUsers),
		),
		HTML: true,
		Buttons: [][]transport.Button{
			transport.Row(button(tr, "admin.btn_notify_on", SectionNotifyOn), button(tr, "admin.btn_notify_off", SectionNotifyOff)),
			backRow(tr),
		},
	}
}

// DecidedView replaces a payment notice once it has been decided.
func DecidedView(tr i18n.Translator, d moderation.Decision) transport.Message {
	key := "admin.decided_rejected"
	if d.Payment.Status == domain.PaymentCompleted {
		key = "admin.decided_completed"
	}

	text := tr.Tf(key, "ID", strconv.FormatInt(d.Payment.ID, 10))
	if !d.UserNotified {
		text += "\n" + tr.T("admin.user_not_notified")
	}
	return transport.Text(text)
}
