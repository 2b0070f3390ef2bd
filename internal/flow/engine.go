// Package flow drives the user-facing conversation: captcha, main menu, payment and order flows.
package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Proton-105/storefront-bot/internal/captcha"
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// Session data keys.
const (
	keyCaptcha   = "captcha_answer"
	keyUsername  = "username"
	keyFirstName = "first_name"
	keyLastName  = "last_name"
	keyAmount    = "amount"
	keyMethod    = "method"
	keyOrderRef  = "order_ref"
	keyAddress   = "address"
)

// Sender identifies the user behind an update. Private chats share the user's id.
type Sender struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

func (s Sender) User() domain.User {
	return domain.User{
		ID:        s.ID,
		Username:  s.Username,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
}

// Document is an inbound file attachment.
type Document struct {
	FileID   string
	FileName string
	MIME     string
}

type Challenger interface {
	Generate() captcha.Challenge
}

type Users interface {
	Register(ctx context.Context, u domain.User) (bool, error)
	IsRegistered(ctx context.Context, userID int64) (bool, error)
}

type Payments interface {
	Submit(ctx context.Context, s moderation.Submission) (domain.Payment, error)
}

type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, kind domain.NotificationKind, msg transport.Message) notify.Delivery
}

type Translations interface {
	Translator(lang string) i18n.Translator
}

// AdminText handles free text typed by an operator while an admin panel step is active.
type AdminText interface {
	HandleAdminText(ctx context.Context, sender Sender, session *state.Session, text string) error
}

// Deps are the engine's collaborators. Admin may be nil.
type Deps struct {
	Machine   state.StateMachine
	Captcha   Challenger
	Users     Users
	Payments  Payments
	Notifier  AdminNotifier
	Transport transport.Transport
	Texts     Translations
	Admin     AdminText
}

type Engine struct {
	machine   state.StateMachine
	captcha   Challenger
	users     Users
	payments  Payments
	notifier  AdminNotifier
	transport transport.Transport
	texts     Translations
	admin     AdminText
	newRef    func() string
	log       *slog.Logger
}

func NewEngine(deps Deps, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		machine:   deps.Machine,
		captcha:   deps.Captcha,
		users:     deps.Users,
		payments:  deps.Payments,
		notifier:  deps.Notifier,
		transport: deps.Transport,
		texts:     deps.Texts,
		admin:     deps.Admin,
		newRef:    orderRef,
		log:       log,
	}
}

// SetAdmin installs the operator text handler after construction.
func (e *Engine) SetAdmin(admin AdminText) {
	e.admin = admin
}

// Start restarts the conversation with a fresh captcha, whatever the current state.
func (e *Engine) Start(ctx context.Context, sender Sender) error {
	tr := e.translator(sender)

	return e.machine.Do(ctx, sender.ID, func(ctx context.Context, s *state.Session) error {
		s.Reset(state.StateAwaitingCaptcha)
		s.Set(keyUsername, sender.Username)
		s.Set(keyFirstName, sender.FirstName)
		s.Set(keyLastName, sender.LastName)

		if err := e.sendChallenge(ctx, sender.ID, s, transport.Text(tr.T("captcha.prompt"))); err != nil {
			return e.abort(ctx, sender, tr, s, "captcha.start", err)
		}
		return nil
	})
}

// Cancel clears the session from any state and acknowledges.
func (e *Engine) Cancel(ctx context.Context, sender Sender) error {
	tr := e.translator(sender)

	return e.machine.Do(ctx, sender.ID, func(ctx context.Context, s *state.Session) error {
		s.Clear()
		e.reply(ctx, sender.ID, transport.Text(tr.T("common.cancelled")))
		return nil
	})
}

// HandleText routes free text by the current state.
func (e *Engine) HandleText(ctx context.Context, sender Sender, text string) error {
	tr := e.translator(sender)

	return e.machine.Do(ctx, sender.ID, func(ctx context.Context, s *state.Session) error {
		switch s.State {
		case state.StateIdle:
			return e.idleText(ctx, sender, tr)
		case state.StateAwaitingCaptcha:
			return e.captchaText(ctx, sender, tr, s, text)
		case state.StateMenuReady:
			e.reply(ctx, sender.ID, mainMenu(tr, tr.T("menu.prompt")))
			return nil
		case state.StatePaymentAmount:
			return e.amountText(ctx, sender, tr, s, text)
		case state.StatePaymentMethod:
			return nil
		case state.StatePaymentComment:
			return e.commentText(ctx, sender, tr, s, text)
		case state.StateOrderConfirmation:
			e.reply(ctx, sender.ID, orderDetails(tr, tr.T("order.confirm_hint")))
			return nil
		case state.StateOrderAddress:
			return e.addressText(ctx, sender, tr, s, text)
		case state.StateOrderDocument:
			e.reply(ctx, sender.ID, transport.Text(tr.T("order.need_pdf")))
			return nil
		case state.StateAdminBroadcastMessage, state.StateAdminBroadcastConfirm, state.StateAdminDirectMessage:
			if e.admin == nil {
				s.Clear()
				return nil
			}
			return e.admin.HandleAdminText(ctx, sender, s, text)
		default:
			e.log.Warn("unknown session state, clearing", slog.Int64("user_id", sender.ID), slog.String("state", string(s.State)))
			s.Clear()
			return nil
		}
	})
}

// HandleAction routes a button press. Actions that do not fit the current state are ignored.
func (e *Engine) HandleAction(ctx context.Context, sender Sender, action string) error {
	tr := e.translator(sender)
	unique, data := transport.SplitAction(action)

	return e.machine.Do(ctx, sender.ID, func(ctx context.Context, s *state.Session) error {
		switch unique {
		case ActionMenu:
			return e.menuAction(ctx, sender, tr, s, data)
		case ActionMethod:
			return e.methodAction(ctx, sender, tr, s, data)
		case ActionPayment:
			return e.paymentAction(ctx, sender, tr, s, data)
		case ActionOrder:
			return e.orderAction(ctx, sender, tr, s, data)
		default:
			e.log.Debug("unhandled action", slog.Int64("user_id", sender.ID), slog.String("action", action))
			return nil
		}
	})
}

// HandleDocument accepts the payment proof in the last order step.
func (e *Engine) HandleDocument(ctx context.Context, sender Sender, doc Document) error {
	tr := e.translator(sender)

	return e.machine.Do(ctx, sender.ID, func(ctx context.Context, s *state.Session) error {
		if s.State != state.StateOrderDocument {
			return nil
		}
		return e.documentStep(ctx, sender, tr, s, doc)
	})
}

func (e *Engine) idleText(ctx context.Context, sender Sender, tr i18n.Translator) error {
	registered, err := e.users.IsRegistered(ctx, sender.ID)
	if err != nil {
		e.log.Warn("registration check failed", slog.Int64("user_id", sender.ID), slog.Any("error", err))
	}

	if registered {
		e.reply(ctx, sender.ID, mainMenu(tr, tr.T("menu.prompt")))
	} else {
		e.reply(ctx, sender.ID, transport.Text(tr.T("common.start_first")))
	}
	return nil
}

// abort force-clears the session after an unexpected failure and asks the user to start over.
func (e *Engine) abort(ctx context.Context, sender Sender, tr i18n.Translator, s *state.Session, step string, err error) error {
	e.log.Error("flow step failed, session reset",
		slog.String("step", step),
		slog.Int64("user_id", sender.ID),
		slog.String("state", string(s.State)),
		slog.Any("error", err),
	)

	s.Clear()
	e.reply(ctx, sender.ID, transport.Text(tr.T("common.error")))
	return nil
}

// reply sends best-effort; the transport already logs failures.
func (e *Engine) reply(ctx context.Context, chatID int64, msg transport.Message) {
	if _, err := e.transport.SendText(ctx, chatID, msg); err != nil {
		e.log.Debug("reply not delivered", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (e *Engine) translator(sender Sender) i18n.Translator {
	return e.texts.Translator(sender.LanguageCode)
}

// adminTranslator renders texts meant for operators.
func (e *Engine) adminTranslator() i18n.Translator {
	return e.texts.Translator("")
}

func orderRef() string {
	return "#" + strings.ToUpper(uuid.NewString()[:8])
}
