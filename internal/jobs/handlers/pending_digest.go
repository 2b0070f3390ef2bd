// Package handlers processes asynq tasks.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/jobs"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/transport"
)

// ErrDigestUndelivered is returned when no admin received the digest, so asynq retries it.
var ErrDigestUndelivered = errors.New("pending digest reached no admin")

type PendingLister interface {
	ListPending(ctx context.Context, limit int) (moderation.PendingPage, error)
}

type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, kind domain.NotificationKind, msg transport.Message) notify.Delivery
}

// PendingDigestHandler reminds admins about payments still waiting for a decision.
type PendingDigestHandler struct {
	queue    PendingLister
	notifier AdminNotifier
	tr       i18n.Translator
	log      *slog.Logger
}

func NewPendingDigestHandler(queue PendingLister, notifier AdminNotifier, tr i18n.Translator, log *slog.Logger) *PendingDigestHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PendingDigestHandler{queue: queue, notifier: notifier, tr: tr, log: log}
}

func (h *PendingDigestHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.PendingDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "pending digest: failed to decode payload",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
		return fmt.Errorf("decode digest payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Limit <= 0 {
		payload.Limit = jobs.DefaultDigestLimit
	}

	page, err := h.queue.ListPending(ctx, payload.Limit)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}
	if page.Total == 0 {
		h.log.DebugContext(ctx, "pending digest: nothing pending")
		return nil
	}

	delivery := h.notifier.NotifyAdmins(ctx, domain.NotifyPayment, moderation.Digest(h.tr, page))

	h.log.InfoContext(ctx, "pending digest sent",
		slog.Int("pending", page.Total),
		slog.Int("sent", delivery.Sent),
		slog.Int("failed", delivery.Failed),
	)

	if delivery.Sent == 0 && delivery.Failed > 0 {
		return ErrDigestUndelivered
	}
	return nil
}
