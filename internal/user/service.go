// Package user implements registration and user statistics.
package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/repository"
	"github.com/Proton-105/storefront-bot/internal/usercache"
)

// Service provides business operations over users.
type Service struct {
	repo  repository.UserRepository
	cache *usercache.Cache
	loc   *time.Location
	now   func() time.Time
	log   *slog.Logger
}

// NewService constructs a new Service instance. cache may be nil.
func NewService(repo repository.UserRepository, cache *usercache.Cache, loc *time.Location, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		repo:  repo,
		cache: cache,
		loc:   loc,
		now:   time.Now,
		log:   log,
	}
}

// Register upserts the user with a fresh registration time and reports whether it is new.
func (s *Service) Register(ctx context.Context, u domain.User) (bool, error) {
	existed, err := s.repo.Exists(ctx, u.ID)
	if err != nil {
		s.logError("register.exists", u.ID, err)
		return false, err
	}

	u.RegisteredAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, u); err != nil {
		s.logError("register.upsert", u.ID, err)
		return false, err
	}

	if err := s.cache.Set(ctx, u); err != nil {
		s.log.Warn("failed to cache registered user", slog.Int64("user_id", u.ID), slog.Any("error", err))
	}

	return !existed, nil
}

// IsRegistered reports whether the user has ever passed the captcha.
func (s *Service) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.Warn("user cache lookup failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	if cached != nil {
		return true, nil
	}

	return s.repo.Exists(ctx, userID)
}

// Stats counts users in total, since local midnight and over the last seven days.
func (s *Service) Stats(ctx context.Context) (domain.UserStats, error) {
	now := s.now()

	total, err := s.repo.Count(ctx)
	if err != nil {
		return domain.UserStats{}, err
	}
	today, err := s.repo.CountSince(ctx, StartOfDay(now, s.loc))
	if err != nil {
		return domain.UserStats{}, err
	}
	week, err := s.repo.CountSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return domain.UserStats{}, err
	}

	return domain.UserStats{Total: total, Today: today, Week: week}, nil
}

// List returns up to limit users in registration order together with the total count.
func (s *Service) List(ctx context.Context, limit int) ([]domain.User, int, error) {
	users, err := s.repo.List(ctx, limit, 0)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// RecipientIDs returns every registered user in registration order.
func (s *Service) RecipientIDs(ctx context.Context) ([]int64, error) {
	return s.repo.IDs(ctx)
}

// StartOfDay returns midnight of t's day in loc, expressed in UTC.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}

func (s *Service) logError(operation string, userID int64, err error) {
	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
