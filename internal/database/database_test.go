package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/migrations"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "bot.db"),
	}

	db, err := Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := NewMigrator(db, cfg.Driver, testLogger())
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Up(), "second run must be a no-op")

	for _, table := range []string{"users", "payments", "admin_settings"} {
		var count int
		require.NoError(t, db.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table))
		assert.Equal(t, 1, count, table)
	}
}

func TestListMigrations(t *testing.T) {
	for _, dialect := range []string{"postgres", "sqlite"} {
		names, err := ListMigrations(migrations.Files, dialect)
		require.NoError(t, err)
		assert.Equal(t, []string{"0001_init.up.sql"}, names)
	}
}

func TestCountApplied(t *testing.T) {
	files := []string{"0001_init.up.sql", "0002_more.up.sql", "0003_last.up.sql"}

	assert.Equal(t, 3, countApplied(files, 0, 3))
	assert.Equal(t, 1, countApplied(files, 2, 3))
	assert.Equal(t, 0, countApplied(files, 3, 3))
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "sqlite", Dialect(DriverSQLite))
	assert.Equal(t, "postgres", Dialect(DriverPgx))
	assert.Equal(t, "postgres", Dialect(DriverPostgres))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
