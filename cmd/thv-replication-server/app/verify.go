package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolhive-replication-server/internal/app"
	"github.com/stacklok/toolhive-replication-server/internal/app/storage"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [TYPE ID]",
	Short: "Run one verification pass on a secondary",
	Long: `Compare local checksums against the primary once and exit.

Without arguments every registry due for verification is checked. With a
resource type and id only that resource is checked.

Examples:
  thv-replication-server verify --config config.yaml
  thv-replication-server verify --config config.yaml repository group/project`,
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or a resource type and id, got %d arguments", len(args))
		}
		return nil
	},
	RunE: runVerify,
}

// parseKey returns nil when no resource was named
func parseKey(args []string) (*resource.Key, error) {
	if len(args) == 0 {
		return nil, nil
	}
	t, err := resource.ParseType(args[0])
	if err != nil {
		return nil, err
	}
	key, err := resource.NewKey(t, args[1])
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	key, err := parseKey(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	summary, err := app.VerifyOnce(ctx, cfg, factory, key)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	output, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format verification summary: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}
