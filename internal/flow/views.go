package flow

import (
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// Callback prefixes and verbs handled by the engine.
const (
	ActionMenu    = "menu"
	ActionMethod  = "method"
	ActionPayment = "payment"
	ActionOrder   = "order"

	MenuTopUp = "topup"
	MenuOrder = "order"

	VerbCancel = "cancel"
	VerbPaid   = "paid"
	VerbFinish = "finish"
)

// Owns reports whether the engine handles callbacks with this prefix.
func Owns(unique string) bool {
	switch unique {
	case ActionMenu, ActionMethod, ActionPayment, ActionOrder:
		return true
	default:
		return false
	}
}

func mainMenu(tr i18n.Translator, text string) transport.Message {
	return transport.Message{
		Text: text,
		Buttons: [][]transport.Button{
			{{Text: tr.T("menu.topup"), Action: transport.Action(ActionMenu, MenuTopUp)}},
			{{Text: tr.T("menu.order"), Action: transport.Action(ActionMenu, MenuOrder)}},
		},
	}
}

func paymentCancelRow(tr i18n.Translator) []transport.Button {
	return transport.Row(transport.Button{
		Text:   tr.T("payment.cancel_button"),
		Action: transport.Action(ActionPayment, VerbCancel),
	})
}

func withPaymentCancel(tr i18n.Translator, text string) transport.Message {
	return transport.Message{Text: text, Buttons: [][]transport.Button{paymentCancelRow(tr)}}
}

func methodChoice(tr i18n.Translator, text string) transport.Message {
	rows := make([][]transport.Button, 0, len(domain.PaymentMethods)+1)
	for _, m := range domain.PaymentMethods {
		rows = append(rows, transport.Row(transport.Button{
			Text:   m.Label(),
			Action: transport.Action(ActionMethod, string(m)),
		}))
	}
	rows = append(rows, paymentCancelRow(tr))

	return transport.Message{Text: text, Buttons: rows}
}

func orderCancelRow(tr i18n.Translator) []transport.Button {
	return transport.Row(transport.Button{
		Text:   tr.T("order.cancel_button"),
		Action: transport.Action(ActionOrder, VerbCancel),
	})
}

func orderCancel(tr i18n.Translator, text string) transport.Message {
	return transport.Message{Text: text, Buttons: [][]transport.Button{orderCancelRow(tr)}}
}

func orderDetails(tr i18n.Translator, text string) transport.Message {
	return transport.Message{
		Text: text,
		Buttons: [][]transport.Button{
			transport.Row(transport.Button{Text: tr.T("order.paid_button"), Action: transport.Action(ActionOrder, VerbPaid)}),
			orderCancelRow(tr),
		},
	}
}
