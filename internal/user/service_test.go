package user

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/database"
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/repository"
	"github.com/Proton-105/storefront-bot/internal/usercache"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

func TestService_RegisterAndStats(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return base.Add(-10 * 24 * time.Hour) }
	created, err := svc.Register(ctx, domain.User{ID: 1, Username: "old"})
	require.NoError(t, err)
	assert.True(t, created)

	svc.now = func() time.Time { return base.Add(-3 * 24 * time.Hour) }
	_, err = svc.Register(ctx, domain.User{ID: 2})
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(-time.Hour) }
	_, err = svc.Register(ctx, domain.User{ID: 3})
	require.NoError(t, err)

	svc.now = func() time.Time { return base }
	created, err = svc.Register(ctx, domain.User{ID: 3, FirstName: "again"})
	require.NoError(t, err)
	assert.False(t, created, "second registration is not new")

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStats{Total: 3, Today: 1, Week: 2}, stats)

	ids, err := svc.RecipientIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	users, total, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 3, total)
}

func TestService_IsRegisteredUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, _ := newTestService(t, usercache.NewCache(client, time.Hour))
	ctx := context.Background()

	ok, err := svc.IsRegistered(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Register(ctx, domain.User{ID: 5})
	require.NoError(t, err)
	assert.True(t, mr.Exists("user:registered:5"))

	ok, err = svc.IsRegistered(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStartOfDay(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	// 22:30 UTC is already the next day in Moscow.
	at := time.Date(2026, 10, 16, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC), StartOfDay(at, moscow))
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), StartOfDay(at, time.UTC))
}

func newTestService(t *testing.T, cache *usercache.Cache) (*Service, repository.UserRepository) {
	t.Helper()

	cfg := config.DatabaseConfig{Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "users.db")}
	db, err := database.Open(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, cfg.Driver, testLogger()).Up())

	repo := repository.NewUserRepository(db, testLogger())
	return NewService(repo, cache, time.UTC, testLogger()), repo
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
