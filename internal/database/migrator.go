package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/storefront-bot/migrations"
)

// Migrator applies the embedded schema for the connected dialect.
type Migrator struct {
	db      *sqlx.DB
	dialect string
	files   fs.FS
	log     *slog.Logger
}

// NewMigrator constructs a Migrator for db. driver selects the migrations subdirectory.
func NewMigrator(db *sqlx.DB, driver string, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:      db,
		dialect: Dialect(driver),
		files:   migrations.Files,
		log:     log.With(slog.String("component", "migrator")),
	}
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	names, err := ListMigrations(m.files, m.dialect)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	m.log.Debug("migrations resolved",
		slog.String("event", "resolve"),
		slog.String("dialect", m.dialect),
		slog.Int("files_total", len(names)),
	)

	source, err := iofs.New(m.files, m.dialect)
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	driver, err := m.databaseDriver()
	if err != nil {
		return err
	}

	// m.Close is not called: it would close the shared *sql.DB.
	mig, err := migrate.NewWithInstance("iofs", source, m.dialect, driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	fromVer, _, _ := mig.Version()

	start := time.Now()
	upErr := mig.Up()
	took := time.Since(start)

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		m.log.Info("migrations summary",
			slog.String("event", "summary"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", took),
		)
		return nil
	default:
		m.log.Error("migration failed",
			slog.String("event", "apply"),
			slog.Any("error", upErr),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	toVer, _, _ := mig.Version()
	m.log.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", countApplied(names, uint64(fromVer), uint64(toVer))),
		slog.Duration("duration", took),
	)

	return nil
}

func (m *Migrator) databaseDriver() (database.Driver, error) {
	switch m.dialect {
	case DriverSQLite:
		driver, err := sqlite.WithInstance(m.db.DB, &sqlite.Config{})
		if err != nil {
			return nil, fmt.Errorf("sqlite migration driver: %w", err)
		}
		return driver, nil
	default:
		driver, err := postgres.WithInstance(m.db.DB, &postgres.Config{})
		if err != nil {
			return nil, fmt.Errorf("postgres migration driver: %w", err)
		}
		return driver, nil
	}
}

// ListMigrations returns the .up.sql files under root in lexical order.
func ListMigrations(dir fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(dir, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func countApplied(files []string, from, to uint64) int {
	count := 0
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			count++
		}
	}
	return count
}
