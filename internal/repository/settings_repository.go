package repository

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

// SettingsRepository stores per-admin notification preferences.
type SettingsRepository interface {
	// GetOrCreate returns the stored settings, creating the all-enabled default on first access.
	GetOrCreate(ctx context.Context, adminID int64) (domain.AdminSettings, error)
	Save(ctx context.Context, settings domain.AdminSettings) error
}

type settingsRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

func NewSettingsRepository(db *sqlx.DB, log *slog.Logger) SettingsRepository {
	if log == nil {
		log = slog.Default()
	}

	return &settingsRepository{
		db:  db,
		log: log,
	}
}

func (r *settingsRepository) GetOrCreate(ctx context.Context, adminID int64) (domain.AdminSettings, error) {
	const insert = `
		INSERT INTO admin_settings (admin_id, notify_payments, notify_new_users)
		VALUES (?, ?, ?)
		ON CONFLICT (admin_id) DO NOTHING
	`
	const selectQuery = `
		SELECT admin_id, notify_payments, notify_new_users
		FROM admin_settings
		WHERE admin_id = ?
	`

	defaults := domain.DefaultAdminSettings(adminID)
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(insert), adminID, defaults.NotifyPayments, defaults.NotifyNewUsers); err != nil {
		r.log.Error("failed to create admin settings", slog.Int64("admin_id", adminID), slog.Any("error", err))
		return domain.AdminSettings{}, apperrors.NewStoreError("create admin settings", err)
	}

	var settings domain.AdminSettings
	if err := r.db.GetContext(ctx, &settings, r.db.Rebind(selectQuery), adminID); err != nil {
		return domain.AdminSettings{}, apperrors.NewStoreError("select admin settings", err)
	}

	return settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings domain.AdminSettings) error {
	const query = `
		INSERT INTO admin_settings (admin_id, notify_payments, notify_new_users)
		VALUES (?, ?, ?)
		ON CONFLICT (admin_id) DO UPDATE SET
			notify_payments = excluded.notify_payments,
			notify_new_users = excluded.notify_new_users
	`

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), settings.AdminID, settings.NotifyPayments, settings.NotifyNewUsers); err != nil {
		r.log.Error("failed to save admin settings", slog.Int64("admin_id", settings.AdminID), slog.Any("error", err))
		return apperrors.NewStoreError("save admin settings", err)
	}

	return nil
}
