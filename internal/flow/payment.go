package flow

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

const noCommentSentinel = "-"

func (e *Engine) menuAction(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, item string) error {
	switch s.State {
	case state.StateMenuReady:
	case state.StateIdle:
		registered, err := e.users.IsRegistered(ctx, sender.ID)
		if err != nil {
			return err
		}
		if !registered {
			e.reply(ctx, sender.ID, transport.Text(tr.T("common.start_first")))
			return nil
		}
	default:
		e.reply(ctx, sender.ID, transport.Text(tr.T("common.finish_current")))
		return nil
	}

	switch item {
	case MenuTopUp:
		s.Reset(state.StatePaymentAmount)
		e.reply(ctx, sender.ID, withPaymentCancel(tr, tr.T("payment.ask_amount")))
	case MenuOrder:
		ref := e.newRef()
		s.Reset(state.StateOrderConfirmation)
		s.Set(keyOrderRef, ref)
		e.reply(ctx, sender.ID, orderDetails(tr, tr.Tf("order.details", "Ref", ref)))
	}

	return nil
}

func (e *Engine) amountText(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, text string) error {
	amount, err := domain.ParseAmount(text)
	if err != nil {
		if !apperrors.IsValidation(err) {
			return e.abort(ctx, sender, tr, s, "payment.amount", err)
		}

		key := "payment.invalid_format"
		switch {
		case errors.Is(err, domain.ErrAmountTooSmall):
			key = "payment.too_small"
		case errors.Is(err, domain.ErrAmountTooLarge):
			key = "payment.too_large"
		}
		e.reply(ctx, sender.ID, withPaymentCancel(tr, tr.T(key)))
		return nil
	}

	formatted := domain.FormatAmount(amount)
	s.Set(keyAmount, formatted)
	s.Enter(state.StatePaymentMethod)
	e.reply(ctx, sender.ID, methodChoice(tr, tr.Tf("payment.choose_method", "Amount", formatted)))
	return nil
}

func (e *Engine) methodAction(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, raw string) error {
	if s.State != state.StatePaymentMethod {
		return nil
	}

	method := domain.PaymentMethod(raw)
	if !method.Valid() {
		return nil
	}

	s.Set(keyMethod, string(method))
	s.Enter(state.StatePaymentComment)
	e.reply(ctx, sender.ID, withPaymentCancel(tr, tr.Tf("payment.ask_comment",
		"Amount", s.Get(keyAmount),
		"Method", method.Label(),
	)))
	return nil
}

func (e *Engine) commentText(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, text string) error {
	comment := strings.TrimSpace(text)
	if comment == noCommentSentinel {
		comment = ""
	}

	amount, err := decimal.NewFromString(s.Get(keyAmount))
	if err != nil {
		return e.abort(ctx, sender, tr, s, "payment.comment", err)
	}

	_, err = e.payments.Submit(ctx, moderation.Submission{
		UserID:    sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		Amount:    amount,
		Method:    domain.PaymentMethod(s.Get(keyMethod)),
		Comment:   comment,
	})
	if err != nil {
		return e.abort(ctx, sender, tr, s, "payment.submit", err)
	}

	s.Clear()
	return nil
}

func (e *Engine) paymentAction(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, verb string) error {
	if verb != VerbCancel || !isPaymentState(s.State) {
		return nil
	}

	s.Clear()
	e.reply(ctx, sender.ID, transport.Text(tr.T("payment.cancelled")))
	return nil
}

func isPaymentState(st state.State) bool {
	switch st {
	case state.StatePaymentAmount, state.StatePaymentMethod, state.StatePaymentComment:
		return true
	default:
		return false
	}
}
