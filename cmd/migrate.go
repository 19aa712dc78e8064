package cmd

import (
	"fmt"
	"log/slog"

	"github.com/papercite/papercite/db"
	"github.com/papercite/papercite/internal/config"
)

// runMigrate applies all pending database migrations and exits.
// Useful for deployments where the schema is managed out of band
// from the serving process.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("database schema is up to date")
	return nil
}
