package app

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolhive-replication-server/database"
)

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Migrate the database down",
	Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  thv-replication-server migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all replication state)
  thv-replication-server migrate down --config config.yaml --yes`,
	RunE: runMigrateDown,
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}

	connString, err := connectionString()
	if err != nil {
		return err
	}

	var prompt string
	if numSteps == 0 {
		prompt = "WARNING: This will migrate down ALL steps and may result in complete data loss. Continue?"
	} else {
		prompt = fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", numSteps)
	}
	ok, err := confirmed(cmd, prompt)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}

	if numSteps == 0 {
		slog.Warn("Migrating down all steps - this will remove all schema!")
	} else {
		slog.Info("Migrating down", "steps", numSteps)
	}
	// #nosec G115 -- bounded above
	if err := database.MigrateDown(cmd.Context(), connString, int(numSteps)); err != nil {
		return err
	}
	slog.Info("Migration completed successfully")
	return nil
}
