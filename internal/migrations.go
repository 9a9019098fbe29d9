package internal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/dukerupert/motorworks/migrations"
)

// RunMigrations applies every pending migration embedded in the migrations
// package and logs each one applied. It returns the resulting schema version.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.MigrationsFS)
	if err != nil {
		return 0, fmt.Errorf("failed to load migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("Applied migration",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration", r.Duration,
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
