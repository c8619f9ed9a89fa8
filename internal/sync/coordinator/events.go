package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

// changeEvents maps recorded changes to the event announcing them
var changeEvents = map[verification.Change]eventlog.Type{
	verification.ChangeCreated: eventlog.TypeRepositoryCreated,
	verification.ChangeUpdated: eventlog.TypeRepositoryUpdated,
	verification.ChangeDeleted: eventlog.TypeRepositoryDeleted,
}

// recordChanges records the checksum of every tracked resource on the primary
// and announces changes to the secondaries
func (c *defaultCoordinator) recordChanges(ctx context.Context) error {
	regs, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list registries: %w", err)
	}

	var errs []error
	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return err
		}

		change, err := c.recorder.Record(ctx, reg.Key)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to record %s: %w", reg.Key, err))
			continue
		}

		eventType, ok := changeEvents[change]
		if !ok || c.events == nil {
			continue
		}
		id, err := c.events.Append(ctx, eventType, reg.Key, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to append %s event for %s: %w", eventType, reg.Key, err))
			continue
		}
		slog.InfoContext(ctx, "Recorded change", "resource", reg.Key.String(), "change", change.String(), "event_id", id)
	}
	return errors.Join(errs...)
}

// pruneEvents deletes events every secondary has consumed
func (c *defaultCoordinator) pruneEvents(ctx context.Context) error {
	n, err := c.events.Prune(ctx, eventlog.PruneOptions{BatchSize: c.config.GetPruneBatchSize()})
	if n > 0 {
		slog.InfoContext(ctx, "Pruned change events", "count", n)
	}
	return err
}
