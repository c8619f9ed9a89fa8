package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolhive-replication-server/internal/app"
	"github.com/stacklok/toolhive-replication-server/internal/app/storage"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage the change event log of a primary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete change events every secondary has consumed",
	Long: `Delete change events that every secondary has already consumed.

With --all every event is deleted regardless of secondary cursors. Secondaries
that missed events converge through their next periodic resync.`,
	RunE: runEventsPrune,
}

var eventsAppendCmd = &cobra.Command{
	Use:   "append EVENT_TYPE TYPE ID",
	Short: "Announce a change of a resource to the secondaries",
	Long: `Append a change event for a resource to the primary's event log.

Use it for changes the primary cannot detect from checksums alone. A
repository_renamed event needs the previous id in the payload, a
verification_reset event makes secondaries verify the resource again.

Event types: ` + eventTypeNames() + `

Examples:
  thv-replication-server events append cache_invalidated repository group/project
  thv-replication-server events append repository_renamed repository group/new --payload '{"oldId":"group/old"}'`,
	Args: cobra.ExactArgs(3),
	RunE: runEventsAppend,
}

func init() {
	eventsPruneCmd.Flags().Bool("all", false, "Delete every event, including unconsumed ones")
	eventsAppendCmd.Flags().String("payload", "", "JSON payload of the event")
	eventsCmd.AddCommand(eventsPruneCmd)
	eventsCmd.AddCommand(eventsAppendCmd)
}

func eventTypeNames() string {
	names := make([]string, 0, len(eventlog.Types))
	for _, t := range eventlog.Types {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func runEventsAppend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eventType := eventlog.Type(args[0])
	if !eventType.Valid() {
		return fmt.Errorf("unknown event type %q, expected one of: %s", args[0], eventTypeNames())
	}
	key, err := parseKey(args[1:])
	if err != nil {
		return err
	}
	payload, err := cmd.Flags().GetString("payload")
	if err != nil {
		return fmt.Errorf("failed to get payload flag: %w", err)
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

	id, err := app.AppendEvent(ctx, cfg, factory, eventType, *key, json.RawMessage(payload))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "appended event %d\n", id)
	return nil
}

func runEventsPrune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	full, err := cmd.Flags().GetBool("all")
	if err != nil {
		return fmt.Errorf("failed to get all flag: %w", err)
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

	n, err := app.PruneEvents(ctx, cfg, factory, full)
	if err != nil {
		return err
	}
	slog.Info("Event log pruned", "deleted", n)
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d events\n", n)
	return nil
}
