// Package admin implements the operator panel: statistics, broadcast, direct messages and moderation.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/storefront-bot/internal/broadcast"
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/flow"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/repository"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

const keyBroadcastText = "broadcast_text"

type Users interface {
	Stats(ctx context.Context) (domain.UserStats, error)
	List(ctx context.Context, limit int) ([]domain.User, int, error)
	RecipientIDs(ctx context.Context) ([]int64, error)
}

type Queue interface {
	Decide(ctx context.Context, id int64, outcome domain.PaymentStatus) (moderation.Decision, error)
	Page(ctx context.Context, page, perPage int) (moderation.PendingPage, error)
	CountPending(ctx context.Context) (int, error)
	Stats(ctx context.Context) (domain.PaymentStats, error)
}

type Broadcaster interface {
	Dispatch(ctx context.Context, msg transport.Message, recipients []int64, progress broadcast.ProgressFunc) broadcast.Summary
}

// Reply answers the button press itself; Alert shows it as a dialog rather than a toast.
type Reply struct {
	Text  string
	Alert bool
}

type Deps struct {
	Machine     state.StateMachine
	Admins      *notify.AdminSet
	Users       Users
	Queue       Queue
	Settings    repository.SettingsRepository
	Broadcaster Broadcaster
	Transport   transport.Transport
	Translator  i18n.Translator
	Location    *time.Location
}

type Panel struct {
	machine     state.StateMachine
	admins      *notify.AdminSet
	users       Users
	queue       Queue
	settings    repository.SettingsRepository
	broadcaster Broadcaster
	transport   transport.Transport
	tr          i18n.Translator
	loc         *time.Location
	log         *slog.Logger
}

var _ flow.AdminText = (*Panel)(nil)

func NewPanel(deps Deps, log *slog.Logger) *Panel {
	if log == nil {
		log = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Panel{
		machine:     deps.Machine,
		admins:      deps.Admins,
		users:       deps.Users,
		queue:       deps.Queue,
		settings:    deps.Settings,
		broadcaster: deps.Broadcaster,
		transport:   deps.Transport,
		tr:          deps.Translator,
		loc:         loc,
		log:         log,
	}
}

// IsAdmin reports whether userID is on the current allow-list.
func (p *Panel) IsAdmin(userID int64) bool {
	return p.admins.Contains(userID)
}

// Owns reports whether the panel handles callbacks with this prefix.
func Owns(unique string) bool {
	return unique == ActionPrefix || unique == moderation.ActionPrefix
}

// Open sends the panel home screen.
func (p *Panel) Open(ctx context.Context, sender flow.Sender) error {
	if !p.IsAdmin(sender.ID) {
		p.log.Warn("admin panel denied", slog.Int64("user_id", sender.ID))
		_, err := p.transport.SendText(ctx, sender.ID, transport.Text(p.tr.T("common.access_denied")))
		return err
	}

	_, err := p.transport.SendText(ctx, sender.ID, HomeView(p.tr))
	return err
}

// HandleAction processes an "admin:" or "pay:" button pressed on the message ref.
func (p *Panel) HandleAction(ctx context.Context, sender flow.Sender, ref transport.MessageRef, action string) (Reply, error) {
	if !p.IsAdmin(sender.ID) {
		p.log.Warn("admin action denied", slog.Int64("user_id", sender.ID), slog.String("action", action))
		return Reply{Text: p.tr.T("common.access_denied"), Alert: true}, nil
	}

	unique, data := transport.SplitAction(action)
	if unique == moderation.ActionPrefix {
		return p.decide(ctx, ref, data)
	}

	section, arg := transport.SplitAction(data)
	switch section {
	case SectionHome:
		return Reply{}, p.show(ctx, ref, HomeView(p.tr))
	case SectionStats:
		return p.stats(ctx, ref)
	case SectionBroadcast:
		return p.enter(ctx, sender, ref, state.StateAdminBroadcastMessage, BroadcastPrompt(p.tr))
	case SectionBroadcastConfirm:
		return p.runBroadcast(ctx, sender, ref)
	case SectionUsers:
		return p.listUsers(ctx, ref)
	case SectionMessage:
		return p.enter(ctx, sender, ref, state.StateAdminDirectMessage, MessagePrompt(p.tr))
	case SectionPending:
		page, _ := strconv.Atoi(arg)
		return Reply{}, p.showPending(ctx, ref, page)
	case SectionCheckNow:
		return p.checkNow(ctx, ref)
	case SectionNotify:
		return p.notifySettings(ctx, sender, ref, nil)
	case SectionNotifyOn:
		on := true
		return p.notifySettings(ctx, sender, ref, &on)
	case SectionNotifyOff:
		off := false
		return p.notifySettings(ctx, sender, ref, &off)
	case SectionClose:
		return Reply{}, p.transport.Delete(ctx, ref)
	case SectionBack, SectionCancel:
		if err := p.machine.Reset(ctx, sender.ID); err != nil {
			return Reply{}, err
		}
		return Reply{}, p.show(ctx, ref, HomeView(p.tr))
	default:
		p.log.Debug("unknown admin section", slog.String("action", action))
		return Reply{}, nil
	}
}

// HandleAdminText handles operator text while a panel step is active. It runs inside the session step.
func (p *Panel) HandleAdminText(ctx context.Context, sender flow.Sender, s *state.Session, text string) error {
	if !p.IsAdmin(sender.ID) {
		s.Clear()
		return nil
	}

	switch s.State {
	case state.StateAdminBroadcastMessage, state.StateAdminBroadcastConfirm:
		return p.previewBroadcast(ctx, sender, s, text)
	case state.StateAdminDirectMessage:
		return p.directMessage(ctx, sender, s, text)
	default:
		return nil
	}
}

func (p *Panel) show(ctx context.Context, ref transport.MessageRef, msg transport.Message) error {
	return p.transport.EditText(ctx, ref, msg)
}

// enter starts a panel step that waits for operator text.
func (p *Panel) enter(ctx context.Context, sender flow.Sender, ref transport.MessageRef, next state.State, prompt transport.Message) (Reply, error) {
	err := p.machine.Do(ctx, sender.ID, func(_ context.Context, s *state.Session) error {
		s.Reset(next)
		return nil
	})
	if errors.Is(err, state.ErrInvalidTransition) {
		return Reply{Text: p.tr.T("admin.finish_current"), Alert: true}, nil
	}
	if err != nil {
		return Reply{}, err
	}

	return Reply{}, p.show(ctx, ref, prompt)
}

func (p *Panel) stats(ctx context.Context, ref transport.MessageRef) (Reply, error) {
	users, err := p.users.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}
	payments, err := p.queue.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}

	return Reply{}, p.show(ctx, ref, StatsView(p.tr, users, payments))
}

func (p *Panel) listUsers(ctx context.Context, ref transport.MessageRef) (Reply, error) {
	users, total, err := p.users.List(ctx, usersPreview)
	if err != nil {
		return Reply{}, err
	}
	return Reply{}, p.show(ctx, ref, UsersView(p.tr, users, total))
}

func (p *Panel) showPending(ctx context.Context, ref transport.MessageRef, page int) error {
	if page < 1 {
		page = 1
	}

	result, err := p.queue.Page(ctx, page, pendingPageSize)
	if err != nil {
		return err
	}
	return p.show(ctx, ref, PendingView(p.tr, result, page, p.loc))
}

func (p *Panel) checkNow(ctx context.Context, ref transport.MessageRef) (Reply, error) {
	count, err := p.queue.CountPending(ctx)
	if err != nil {
		return Reply{}, err
	}

	if err := p.showPending(ctx, ref, 1); err != nil {
		p.log.Warn("failed to refresh pending view", slog.Any("error", err))
	}
	return Reply{Text: p.tr.Tf("admin.check_now", "Count", strconv.Itoa(count)), Alert: true}, nil
}

// notifySettings shows the operator's flags, setting both to *enable first when it is not nil.
func (p *Panel) notifySettings(ctx context.Context, sender flow.Sender, ref transport.MessageRef, enable *bool) (Reply, error) {
	settings, err := p.settings.GetOrCreate(ctx, sender.ID)
	if err != nil {
		return Reply{}, err
	}

	if enable != nil {
		settings.NotifyPayments = *enable
		settings.NotifyNewUsers = *enable
		if err := p.settings.Save(ctx, settings); err != nil {
			return Reply{}, err
		}
		p.log.Info("admin notifications updated", slog.Int64("admin_id", sender.ID), slog.Bool("enabled", *enable))
	}

	return Reply{}, p.show(ctx, ref, NotifySettingsView(p.tr, settings))
}

func (p *Panel) decide(ctx context.Context, ref transport.MessageRef, data string) (Reply, error) {
	id, outcome, err := moderation.ParseDecisionAction(data)
	if err != nil {
		return Reply{Text: p.tr.T("admin.payment_not_found"), Alert: true}, nil
	}

	decision, err := p.queue.Decide(ctx, id, outcome)
	switch {
	case err == nil:
	case moderation.IsAlreadyDecided(err):
		return Reply{Text: p.tr.T("admin.already_decided"), Alert: true}, nil
	case errors.Is(err, domain.ErrPaymentNotFound):
		return Reply{Text: p.tr.T("admin.payment_not_found"), Alert: true}, nil
	default:
		return Reply{}, err
	}

	view := DecidedView(p.tr, decision)
	if err := p.show(ctx, ref, view); err != nil {
		p.log.Warn("failed to update decided payment message", slog.Int64("payment_id", id), slog.Any("error", err))
	}

	return Reply{Text: strings.SplitN(view.Text, "\n", 2)[0]}, nil
}

func (p *Panel) previewBroadcast(ctx context.Context, sender flow.Sender, s *state.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		_, err := p.transport.SendText(ctx, sender.ID, transport.Text(p.tr.T("admin.broadcast_empty")))
		return err
	}

	recipients, err := p.users.RecipientIDs(ctx)
	if err != nil {
		return err
	}

	s.Set(keyBroadcastText, text)
	s.Enter(state.StateAdminBroadcastConfirm)
	_, err = p.transport.SendText(ctx, sender.ID, BroadcastPreview(p.tr, text, len(recipients)))
	return err
}

// runBroadcast takes the confirmed text out of the session and dispatches it outside the session lock.
func (p *Panel) runBroadcast(ctx context.Context, sender flow.Sender, ref transport.MessageRef) (Reply, error) {
	var text string
	err := p.machine.Do(ctx, sender.ID, func(_ context.Context, s *state.Session) error {
		if s.State == state.StateAdminBroadcastConfirm {
			text = s.Get(keyBroadcastText)
		}
		if text != "" {
			s.Clear()
		}
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	if text == "" {
		return Reply{Text: p.tr.T("admin.broadcast_missing"), Alert: true}, nil
	}

	recipients, err := p.users.RecipientIDs(ctx)
	if err != nil {
		return Reply{}, err
	}

	if err := p.show(ctx, ref, BroadcastStarted(p.tr, len(recipients))); err != nil {
		p.log.Warn("failed to show broadcast status", slog.Any("error", err))
	}

	p.log.Info("broadcast confirmed", slog.Int64("admin_id", sender.ID), slog.Int("recipients", len(recipients)))
	summary := p.broadcaster.Dispatch(ctx, transport.Text(text), recipients, func(ctx context.Context, snapshot broadcast.Summary) {
		if err := p.show(ctx, ref, BroadcastProgress(p.tr, snapshot)); err != nil {
			p.log.Debug("broadcast progress not shown", slog.Any("error", err))
		}
	})

	// The final report must reach the operator even when ctx was cancelled mid-run.
	if err := p.show(context.WithoutCancel(ctx), ref, BroadcastDone(p.tr, summary)); err != nil {
		p.log.Warn("failed to show broadcast summary", slog.Any("error", err))
	}

	return Reply{}, nil
}

func (p *Panel) directMessage(ctx context.Context, sender flow.Sender, s *state.Session, text string) error {
	rawID, body, ok := strings.Cut(strings.TrimSpace(text), "\n")
	userID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	body = strings.TrimSpace(body)
	if !ok || err != nil || userID <= 0 || body == "" {
		_, sendErr := p.transport.SendText(ctx, sender.ID, transport.Text(p.tr.T("admin.message_format")))
		return sendErr
	}

	key := "admin.message_sent"
	msg := transport.Text(p.tr.Tf("admin.message_from_admin", "Text", body))
	if _, err := p.transport.SendText(ctx, userID, msg); err != nil {
		key = "admin.message_failed"
		p.log.Warn("direct message failed",
			slog.Int64("admin_id", sender.ID),
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}

	s.Clear()
	_, err = p.transport.SendText(ctx, sender.ID, transport.Message{
		Text:    p.tr.Tf(key, "ID", strconv.FormatInt(userID, 10)),
		Buttons: [][]transport.Button{backRow(p.tr)},
	})
	return err
}
