// Package repository implements the SQL store for users, payments and admin settings.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Upsert inserts the user or refreshes its profile and registration time.
	Upsert(ctx context.Context, user domain.User) error
	Exists(ctx context.Context, id int64) (bool, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	// List returns users ordered by registration time, oldest first.
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	// IDs returns every user id in registration order.
	IDs(ctx context.Context) ([]int64, error)
}

type userRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sqlx.DB, log *slog.Logger) UserRepository {
	if log == nil {
		log = slog.Default()
	}

	return &userRepository{
		db:  db,
		log: log,
	}
}

func (r *userRepository) Upsert(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (user_id, username, first_name, last_name, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			registered_at = excluded.registered_at
	`

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		dbTime(user.RegisteredAt),
	); err != nil {
		r.log.Error("failed to upsert user", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return apperrors.NewStoreError("upsert user", err)
	}

	return nil
}

func (r *userRepository) Exists(ctx context.Context, id int64) (bool, error) {
	const query = `SELECT COUNT(*) FROM users WHERE user_id = ?`

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), id); err != nil {
		return false, apperrors.NewStoreError("check user", err)
	}

	return count > 0, nil
}

// FindByID returns domain.ErrUserNotFound when the user never registered.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
		SELECT user_id, username, first_name, last_name, registered_at
		FROM users
		WHERE user_id = ?
	`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, r.db.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		r.log.Error("failed to fetch user", slog.Int64("user_id", id), slog.Any("error", err))
		return nil, apperrors.NewStoreError("select user", err)
	}

	return &user, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	const query = `
		SELECT user_id, username, first_name, last_name, registered_at
		FROM users
		ORDER BY registered_at, user_id
		LIMIT ? OFFSET ?
	`

	users := make([]domain.User, 0, limit)
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), limit, offset); err != nil {
		return nil, apperrors.NewStoreError("list users", err)
	}

	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, apperrors.NewStoreError("count users", err)
	}
	return count, nil
}

func (r *userRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE registered_at >= ?`

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), dbTime(since)); err != nil {
		return 0, apperrors.NewStoreError("count users since", err)
	}
	return count, nil
}

func (r *userRepository) IDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT user_id FROM users ORDER BY registered_at, user_id`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, apperrors.NewStoreError("list user ids", err)
	}
	return ids, nil
}

// dbTime normalizes timestamps so that text-encoded sqlite values compare correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
