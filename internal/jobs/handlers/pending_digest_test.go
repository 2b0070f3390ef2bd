package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/jobs"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLister struct {
	page      moderation.PendingPage
	err       error
	lastLimit int
}

func (f *fakeLister) ListPending(_ context.Context, limit int) (moderation.PendingPage, error) {
	f.lastLimit = limit
	return f.page, f.err
}

type fakeNotifier struct {
	delivery notify.Delivery
	kinds    []domain.NotificationKind
	messages []transport.Message
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, kind domain.NotificationKind, msg transport.Message) notify.Delivery {
	f.kinds = append(f.kinds, kind)
	f.messages = append(f.messages, msg)
	return f.delivery
}

func pending(id int64, firstName, username string, amount string) domain.PendingPayment {
	return domain.PendingPayment{
		Payment: domain.Payment{
			ID:       id,
			UserID:   100 + id,
			Username: username,
			Amount:   decimal.RequireFromString(amount),
			Method:   domain.MethodCard,
			Status:   domain.PaymentPending,
		},
		FirstName: firstName,
	}
}

func digestTask(t *testing.T, limit int) *asynq.Task {
	t.Helper()
	task, err := jobs.NewPendingDigestTask(limit)
	require.NoError(t, err)
	return task
}

func newHandler(t *testing.T, lister *fakeLister, notifier *fakeNotifier) *PendingDigestHandler {
	t.Helper()
	texts, err := i18n.Load("ru")
	require.NoError(t, err)
	return NewPendingDigestHandler(lister, notifier, texts.Default(), testLogger())
}

func TestPendingDigest_NotifiesAdmins(t *testing.T) {
	lister := &fakeLister{page: moderation.PendingPage{
		Items: []domain.PendingPayment{
			pending(7, "Анна", "anna", "1500"),
			pending(6, "", "bob", "250.5"),
		},
		Total:     4,
		Remaining: 2,
	}}
	notifier := &fakeNotifier{delivery: notify.Delivery{Sent: 2}}

	err := newHandler(t, lister, notifier).ProcessTask(context.Background(), digestTask(t, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, lister.lastLimit)
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyPayment}, notifier.kinds)

	msg := notifier.messages[0]
	assert.Contains(t, msg.Text, "Ожидают проверки: 4 платежей")
	assert.Contains(t, msg.Text, "#7 · Анна · 1500.00 руб")
	assert.Contains(t, msg.Text, "#6 · @bob · 250.50 руб")
	assert.Contains(t, msg.Text, "... и ещё 2 платежей")

	require.Len(t, msg.Buttons, 2)
	assert.Equal(t, "pay:confirm:7", msg.Buttons[0][0].Action)
	assert.Equal(t, "pay:reject:6", msg.Buttons[1][1].Action)
}

func TestPendingDigest_NothingPending(t *testing.T) {
	lister := &fakeLister{}
	notifier := &fakeNotifier{}

	err := newHandler(t, lister, notifier).ProcessTask(context.Background(), digestTask(t, 0))
	require.NoError(t, err)

	assert.Equal(t, jobs.DefaultDigestLimit, lister.lastLimit)
	assert.Empty(t, notifier.messages)
}

func TestPendingDigest_Errors(t *testing.T) {
	t.Run("store failure is retried", func(t *testing.T) {
		errDB := errors.New("db down")
		err := newHandler(t, &fakeLister{err: errDB}, &fakeNotifier{}).ProcessTask(context.Background(), digestTask(t, 5))
		assert.ErrorIs(t, err, errDB)
	})

	t.Run("undelivered digest is retried", func(t *testing.T) {
		lister := &fakeLister{page: moderation.PendingPage{Items: []domain.PendingPayment{pending(1, "A", "", "100")}, Total: 1}}
		notifier := &fakeNotifier{delivery: notify.Delivery{Failed: 2}}

		err := newHandler(t, lister, notifier).ProcessTask(context.Background(), digestTask(t, 5))
		assert.ErrorIs(t, err, ErrDigestUndelivered)
	})

	t.Run("all admins muted is not an error", func(t *testing.T) {
		lister := &fakeLister{page: moderation.PendingPage{Items: []domain.PendingPayment{pending(1, "A", "", "100")}, Total: 1}}
		notifier := &fakeNotifier{delivery: notify.Delivery{Skipped: 2}}

		assert.NoError(t, newHandler(t, lister, notifier).ProcessTask(context.Background(), digestTask(t, 5)))
	})

	t.Run("bad payload skips retries", func(t *testing.T) {
		task := asynq.NewTask(jobs.TaskTypePendingDigest, []byte("{"))
		err := newHandler(t, &fakeLister{}, &fakeNotifier{}).ProcessTask(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}
