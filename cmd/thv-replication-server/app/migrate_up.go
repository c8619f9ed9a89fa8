package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolhive-replication-server/database"
)

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	Long: `Apply all pending database migrations to bring the schema up to date.
This command reads the database connection parameters from the config file
and applies all migrations that haven't been run yet.`,
	RunE: runMigrateUp,
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	connString, err := connectionString()
	if err != nil {
		return err
	}

	ok, err := confirmed(cmd, "About to apply database migrations. Continue?")
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	slog.Info("Applying database migrations...")
	if err := database.MigrateUp(cmd.Context(), connString); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
