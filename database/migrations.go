// Package database provides database migration tooling.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 registers the "pgx5://" database driver
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// GetMigrate returns a new migration instance from the given connection string.
// Both postgres:// and postgresql:// URLs are accepted.
func GetMigrate(connString string) (*migrate.Migrate, error) {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, toMigrateURL(connString))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// toMigrateURL rewrites a libpq URL to the scheme of the pgx v5 migrate driver
func toMigrateURL(connString string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(connString, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}

// MigrateUp applies every pending migration
func MigrateUp(ctx context.Context, connString string) error {
	return runMigration(ctx, connString, func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// MigrateDown reverts the given number of migrations. A non-positive
// steps value reverts all of them.
func MigrateDown(ctx context.Context, connString string, steps int) error {
	return runMigration(ctx, connString, func(m *migrate.Migrate) error {
		if steps <= 0 {
			return m.Down()
		}
		return m.Steps(-steps)
	})
}

func runMigration(ctx context.Context, connString string, fn func(*migrate.Migrate) error) error {
	m, err := GetMigrate(connString)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			slog.WarnContext(ctx, "Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.InfoContext(ctx, "Database migrations applied", "version", version, "dirty", dirty)
	return nil
}
