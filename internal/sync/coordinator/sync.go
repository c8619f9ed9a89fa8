package coordinator

import (
	"context"
	"log/slog"
	"time"

	pkgsync "github.com/stacklok/toolhive-replication-server/internal/sync"
)

// syncPass syncs every due registry
func (c *defaultCoordinator) syncPass(ctx context.Context) error {
	start := time.Now()
	summary, err := c.syncer.SyncDue(ctx)
	if len(summary) > 0 {
		slog.InfoContext(ctx, "Sync pass finished",
			"succeeded", summary[pkgsync.OutcomeSucceeded],
			"failed", summary[pkgsync.OutcomeFailed],
			"skipped", summary[pkgsync.OutcomeSkipped],
			"reset", summary[pkgsync.OutcomeReset],
			"duration", time.Since(start))
	}
	return err
}

// verifyPass verifies every due registry
func (c *defaultCoordinator) verifyPass(ctx context.Context) error {
	summary, err := c.verifier.VerifyDue(ctx)
	if len(summary) > 0 {
		attrs := make([]any, 0, 2*len(summary))
		for outcome, n := range summary {
			attrs = append(attrs, string(outcome), n)
		}
		slog.InfoContext(ctx, "Verification pass finished", attrs...)
	}
	return err
}

// consumeEvents applies pending events from the primary
func (c *defaultCoordinator) consumeEvents(ctx context.Context) error {
	n, err := c.consumer.Run(ctx)
	if n > 0 {
		slog.InfoContext(ctx, "Applied change events", "count", n)
	}
	return err
}

// pushStatus reports the status of this node to the primary
func (c *defaultCoordinator) pushStatus(ctx context.Context) error {
	st, err := c.collector.Collect(ctx)
	if err != nil {
		return err
	}
	if _, err := c.reporter.PushStatus(ctx, st); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Pushed node status", "health", st.Health)
	return nil
}
