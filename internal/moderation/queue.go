// Package moderation implements the manual payment review queue.
package moderation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/repository"
	"github.com/Proton-105/storefront-bot/internal/transport"
	"github.com/Proton-105/storefront-bot/internal/user"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

// Notifier delivers moderation notices.
type Notifier interface {
	NotifyAdmins(ctx context.Context, kind domain.NotificationKind, msg transport.Message) notify.Delivery
	NotifyUser(ctx context.Context, userID int64, msg transport.Message) error
}

// Submission is what a user declared at the end of the payment flow.
type Submission struct {
	UserID    int64
	Username  string
	FirstName string
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
	Comment   string
}

// Decision is the result of a successful moderation decision.
type Decision struct {
	Payment      domain.Payment
	UserNotified bool
}

// PendingPage is one page of the pending list.
type PendingPage struct {
	Items     []domain.PendingPayment
	Total     int
	Remaining int
}

type Queue struct {
	payments repository.PaymentRepository
	notifier Notifier
	tr       i18n.Translator
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

func NewQueue(payments repository.PaymentRepository, notifier Notifier, tr i18n.Translator, loc *time.Location, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Queue{
		payments: payments,
		notifier: notifier,
		tr:       tr,
		loc:      loc,
		now:      time.Now,
		log:      log,
	}
}

// Submit records a pending payment, alerts admins and sends the user a receipt.
// Notification failures do not fail the submission.
func (q *Queue) Submit(ctx context.Context, s Submission) (domain.Payment, error) {
	if !s.Method.Valid() {
		return domain.Payment{}, apperrors.NewValidationError("unknown payment method")
	}
	if s.Amount.LessThan(domain.MinAmount) || s.Amount.GreaterThan(domain.MaxAmount) {
		return domain.Payment{}, apperrors.NewValidationError("amount out of range").WithCause(domain.ErrAmountRange)
	}

	payment := domain.Payment{
		UserID:      s.UserID,
		Username:    s.Username,
		Amount:      s.Amount,
		Method:      s.Method,
		Status:      domain.PaymentPending,
		Comment:     s.Comment,
		SubmittedAt: q.now().UTC(),
	}

	id, err := q.payments.Create(ctx, payment)
	if err != nil {
		return domain.Payment{}, err
	}
	payment.ID = id
	metrics.RecordPaymentSubmitted(string(s.Method))

	log := q.log.With(slog.Int64("payment_id", id), slog.Int64("user_id", s.UserID))
	log.Info("payment submitted",
		slog.String("amount", domain.FormatAmount(s.Amount)),
		slog.String("method", string(s.Method)),
	)

	delivery := q.notifier.NotifyAdmins(ctx, domain.NotifyPayment, AdminNotice(q.tr, payment, s.FirstName))
	if delivery.Sent > 0 {
		if err := q.payments.MarkAdminNotified(ctx, id); err != nil {
			log.Warn("failed to mark payment notified", slog.Any("error", err))
		} else {
			payment.AdminNotified = true
		}
	}

	if err := q.notifier.NotifyUser(ctx, s.UserID, Receipt(q.tr, payment)); err != nil {
		log.Warn("payment receipt not delivered", slog.Any("error", err))
	}

	return payment, nil
}

// Decide applies outcome to a pending payment exactly once and tells its owner.
func (q *Queue) Decide(ctx context.Context, id int64, outcome domain.PaymentStatus) (Decision, error) {
	if !outcome.IsOutcome() {
		return Decision{}, apperrors.NewValidationError("invalid moderation outcome")
	}

	changed, err := q.payments.DecideIfPending(ctx, id, outcome, q.now().UTC())
	if err != nil {
		return Decision{}, err
	}

	payment, err := q.payments.FindByID(ctx, id)
	if err != nil {
		if !changed {
			return Decision{}, err
		}
		metrics.RecordPaymentDecision(string(outcome))
		q.log.Error("payment decided but reload failed, owner not notified",
			slog.Int64("payment_id", id),
			slog.String("outcome", string(outcome)),
			slog.Any("error", err),
		)
		return Decision{Payment: domain.Payment{ID: id, Status: outcome}}, nil
	}

	if !changed {
		return Decision{Payment: *payment}, apperrors.NewStateError("payment already decided").
			WithCause(domain.ErrAlreadyDecided)
	}

	metrics.RecordPaymentDecision(string(outcome))
	q.log.Info("payment decided", slog.Int64("payment_id", id), slog.String("outcome", string(outcome)))

	decision := Decision{Payment: *payment}
	if err := q.notifier.NotifyUser(ctx, payment.UserID, Outcome(q.tr, *payment)); err != nil {
		q.log.Warn("decision not delivered to user",
			slog.Int64("payment_id", id),
			slog.Int64("user_id", payment.UserID),
			slog.Any("error", err),
		)
		return decision, nil
	}

	decision.UserNotified = true
	return decision, nil
}

// ListPending returns the most recent pending payments.
func (q *Queue) ListPending(ctx context.Context, limit int) (PendingPage, error) {
	return q.listPending(ctx, limit, 0)
}

// Page returns page (1-based) of the pending list.
func (q *Queue) Page(ctx context.Context, page, perPage int) (PendingPage, error) {
	if page < 1 {
		page = 1
	}
	return q.listPending(ctx, perPage, (page-1)*perPage)
}

func (q *Queue) listPending(ctx context.Context, limit, offset int) (PendingPage, error) {
	if limit <= 0 {
		return PendingPage{}, apperrors.NewValidationError("limit must be positive")
	}

	total, err := q.payments.CountPending(ctx)
	if err != nil {
		return PendingPage{}, err
	}
	if total == 0 {
		return PendingPage{}, nil
	}

	items, err := q.payments.ListPending(ctx, limit, offset)
	if err != nil {
		return PendingPage{}, err
	}

	remaining := total - offset - len(items)
	if remaining < 0 {
		remaining = 0
	}

	return PendingPage{Items: items, Total: total, Remaining: remaining}, nil
}

// CountPending is the number of payments awaiting a decision.
func (q *Queue) CountPending(ctx context.Context) (int, error) {
	return q.payments.CountPending(ctx)
}

// Stats computes moderation counters from the store on every call.
func (q *Queue) Stats(ctx context.Context) (domain.PaymentStats, error) {
	today := user.StartOfDay(q.now(), q.loc)

	var (
		stats domain.PaymentStats
		err   error
	)
	if stats.Total, err = q.payments.Count(ctx); err != nil {
		return domain.PaymentStats{}, err
	}
	if stats.Today, err = q.payments.CountSince(ctx, today); err != nil {
		return domain.PaymentStats{}, err
	}
	if stats.Pending, err = q.payments.CountPending(ctx); err != nil {
		return domain.PaymentStats{}, err
	}
	if stats.CompletedToday, err = q.payments.SumCompleted(ctx, today); err != nil {
		return domain.PaymentStats{}, err
	}
	if stats.CompletedTotal, err = q.payments.SumCompleted(ctx, time.Time{}); err != nil {
		return domain.PaymentStats{}, err
	}

	return stats, nil
}

// ParseDecisionAction reads "confirm:<id>" or "reject:<id>" callback data.
func ParseDecisionAction(data string) (int64, domain.PaymentStatus, error) {
	verb, rawID := transport.SplitAction(data)

	var outcome domain.PaymentStatus
	switch verb {
	case ActionConfirm:
		outcome = domain.PaymentCompleted
	case ActionReject:
		outcome = domain.PaymentRejected
	default:
		return 0, "", apperrors.NewValidationError("unknown decision")
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", apperrors.NewValidationError("invalid payment id")
	}

	return id, outcome, nil
}

// IsAlreadyDecided reports whether err came from deciding a non-pending payment.
func IsAlreadyDecided(err error) bool {
	return errors.Is(err, domain.ErrAlreadyDecided)
}
