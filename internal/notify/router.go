// Package notify routes operational messages to admins and users.
package notify

import (
	"context"
	"log/slog"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/repository"
	"github.com/Proton-105/storefront-bot/internal/transport"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

const kindUser = "user"

// Delivery counts the outcome of one admin fan-out.
type Delivery struct {
	Sent    int
	Skipped int
	Failed  int
}

// Router delivers notifications. Send failures are logged and counted, never returned to
// the caller of NotifyAdmins.
type Router struct {
	admins    *AdminSet
	settings  repository.SettingsRepository
	transport transport.Transport
	log       *slog.Logger
}

func NewRouter(admins *AdminSet, settings repository.SettingsRepository, tr transport.Transport, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		admins:    admins,
		settings:  settings,
		transport: tr,
		log:       log,
	}
}

// Admins exposes the allow-list used for routing.
func (r *Router) Admins() *AdminSet {
	return r.admins
}

// NotifyAdmins sends msg to every admin whose preferences allow kind.
func (r *Router) NotifyAdmins(ctx context.Context, kind domain.NotificationKind, msg transport.Message) Delivery {
	var d Delivery

	for _, adminID := range r.admins.IDs() {
		settings, err := r.settings.GetOrCreate(ctx, adminID)
		if err != nil {
			r.log.Warn("admin settings unavailable, using defaults",
				slog.Int64("admin_id", adminID),
				slog.Any("error", err),
			)
			settings = domain.DefaultAdminSettings(adminID)
		}

		if !settings.Allows(kind) {
			d.Skipped++
			metrics.RecordNotification(string(kind), "skipped")
			continue
		}

		if _, err := r.transport.SendText(ctx, adminID, msg); err != nil {
			d.Failed++
			metrics.RecordNotification(string(kind), "failed")
			r.log.Error("admin notification failed",
				slog.String("kind", string(kind)),
				slog.Int64("admin_id", adminID),
				slog.Any("error", err),
			)
			continue
		}

		d.Sent++
		metrics.RecordNotification(string(kind), "sent")
	}

	r.log.Debug("admin notification routed",
		slog.String("kind", string(kind)),
		slog.Int("sent", d.Sent),
		slog.Int("skipped", d.Skipped),
		slog.Int("failed", d.Failed),
	)

	return d
}

// NotifyUser makes a single delivery attempt to userID.
func (r *Router) NotifyUser(ctx context.Context, userID int64, msg transport.Message) error {
	if _, err := r.transport.SendText(ctx, userID, msg); err != nil {
		metrics.RecordNotification(kindUser, "failed")
		r.log.Warn("user notification failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}

	metrics.RecordNotification(kindUser, "sent")
	return nil
}
