package flow

import (
	"context"
	"html"
	"log/slog"
	"strconv"

	"github.com/Proton-105/storefront-bot/internal/captcha"
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/internal/transport"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

// sendChallenge stores a new answer, replacing any previous one, and sends its image.
func (e *Engine) sendChallenge(ctx context.Context, chatID int64, s *state.Session, caption transport.Message) error {
	ch := e.captcha.Generate()
	s.Set(keyCaptcha, ch.Answer)
	metrics.RecordCaptcha("issued")

	if len(ch.Image) == 0 {
		_, err := e.transport.SendText(ctx, chatID, caption)
		return err
	}

	_, err := e.transport.SendImage(ctx, chatID, transport.Image{
		Data:    ch.Image,
		Name:    "captcha.png",
		Caption: caption,
	})
	return err
}

func (e *Engine) captchaText(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, text string) error {
	if !captcha.Verify(text, s.Get(keyCaptcha)) {
		metrics.RecordCaptcha("failed")
		if err := e.sendChallenge(ctx, sender.ID, s, transport.Message{Text: tr.T("captcha.wrong"), HTML: true}); err != nil {
			return e.abort(ctx, sender, tr, s, "captcha.challenge", err)
		}
		return nil
	}
	metrics.RecordCaptcha("passed")

	u := domain.User{
		ID:        sender.ID,
		Username:  s.Get(keyUsername),
		FirstName: s.Get(keyFirstName),
		LastName:  s.Get(keyLastName),
	}

	created, err := e.users.Register(ctx, u)
	if err != nil {
		return e.abort(ctx, sender, tr, s, "captcha.register", err)
	}
	if created {
		e.log.Info("user registered", slog.Int64("user_id", u.ID))
		e.notifier.NotifyAdmins(ctx, domain.NotifyNewUser, newUserNotice(e.adminTranslator(), u))
	}

	s.Reset(state.StateMenuReady)
	e.reply(ctx, sender.ID, transport.Text(tr.T("captcha.passed")))
	e.reply(ctx, sender.ID, mainMenu(tr, tr.Tf("menu.welcome", "Name", u.DisplayName())))
	return nil
}

func newUserNotice(tr i18n.Translator, u domain.User) transport.Message {
	return transport.Message{
		Text: tr.Tf("notify.new_user",
			"User", html.EscapeString(u.DisplayName()),
			"Handle", html.EscapeString(domain.Handle(u.Username)),
			"UserID", strconv.FormatInt(u.ID, 10),
		),
		HTML: true,
	}
}
