package flow

import (
	"context"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

const mimePDF = "application/pdf"

func (e *Engine) orderAction(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, verb string) error {
	switch verb {
	case VerbPaid:
		if s.State != state.StateOrderConfirmation {
			return nil
		}
		s.Enter(state.StateOrderAddress)
		e.reply(ctx, sender.ID, transport.Text(tr.T("order.ask_address")))
	case VerbCancel:
		if !isOrderState(s.State) {
			return nil
		}
		s.Clear()
		e.reply(ctx, sender.ID, transport.Text(tr.T("order.cancelled")))
	case VerbFinish:
		if isOrderState(s.State) {
			s.Clear()
		}
	}
	return nil
}

func (e *Engine) addressText(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, text string) error {
	address := strings.TrimSpace(text)
	if address == "" {
		e.reply(ctx, sender.ID, transport.Text(tr.T("order.ask_address")))
		return nil
	}

	s.Set(keyAddress, address)
	s.Enter(state.StateOrderDocument)
	e.reply(ctx, sender.ID, orderCancel(tr, tr.Tf("order.address_saved", "Address", address)))
	return nil
}

func (e *Engine) documentStep(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, doc Document) error {
	if !strings.EqualFold(doc.MIME, mimePDF) || doc.FileID == "" {
		e.reply(ctx, sender.ID, orderCancel(tr, tr.T("order.need_pdf")))
		return nil
	}

	address := s.Get(keyAddress)
	delivery := e.notifier.NotifyAdmins(ctx, domain.NotifyOrder, orderNotice(e.adminTranslator(), sender, address, doc))
	e.log.Info("order submitted",
		slog.Int64("user_id", sender.ID),
		slog.String("order_ref", s.Get(keyOrderRef)),
		slog.Int("admins_notified", delivery.Sent),
	)

	s.Clear()
	e.reply(ctx, sender.ID, transport.Message{
		Text:    tr.Tf("order.received", "Address", address, "File", doc.FileName),
		Buttons: [][]transport.Button{{{Text: tr.T("order.finish_button"), Action: transport.Action(ActionOrder, VerbFinish)}}},
	})
	return nil
}

func orderNotice(tr i18n.Translator, sender Sender, address string, doc Document) transport.Message {
	return transport.Message{
		Text: tr.Tf("notify.order",
			"User", html.EscapeString(sender.User().DisplayName()),
			"Handle", html.EscapeString(domain.Handle(sender.Username)),
			"UserID", strconv.FormatInt(sender.ID, 10),
			"Address", html.EscapeString(address),
			"File", html.EscapeString(doc.FileName),
		),
		HTML:       true,
		DocumentID: doc.FileID,
	}
}

func isOrderState(st state.State) bool {
	switch st {
	case state.StateOrderConfirmation, state.StateOrderAddress, state.StateOrderDocument:
		return true
	default:
		return false
	}
}
