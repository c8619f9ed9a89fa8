package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
)

// Collector builds the status of the local node from its registries
type Collector struct {
	node    string
	role    string
	version string
	store   registry.Store

	cursors  eventlog.CursorStore
	consumer string

	metrics *telemetry.SyncMetrics
	now     func() time.Time
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithEventCursor reports the cursor of consumer as the applied event position
func WithEventCursor(cursors eventlog.CursorStore, consumer string) CollectorOption {
	return func(c *Collector) {
		c.cursors = cursors
		c.consumer = consumer
	}
}

// WithCollectorMetrics records registry state gauges on every collection
func WithCollectorMetrics(m *telemetry.SyncMetrics) CollectorOption {
	return func(c *Collector) {
		c.metrics = m
	}
}

// WithCollectorClock overrides the time source
func WithCollectorClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector creates a collector for the node
func NewCollector(node, role, version string, store registry.Store, opts ...CollectorOption) *Collector {
	c := &Collector{
		node:    node,
		role:    role,
		version: version,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect returns the current status of the node
func (c *Collector) Collect(ctx context.Context) (*NodeStatus, error) {
	regs, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registries: %w", err)
	}

	fields := Fields{Registries: len(regs)}
	perType := make(map[resource.Type]map[string]int64)
	for _, reg := range regs {
		states := countRegistry(&fields, reg)
		if perType[reg.Key.Type] == nil {
			perType[reg.Key.Type] = make(map[string]int64)
		}
		for _, state := range states {
			perType[reg.Key.Type][state]++
		}
	}

	if c.cursors != nil {
		cursor, err := c.cursors.LoadCursor(ctx, c.consumer)
		if err != nil {
			slog.WarnContext(ctx, "Failed to load event cursor for status", "consumer", c.consumer, "error", err)
		} else {
			fields.EventCursor = cursor
		}
	}

	c.recordGauges(ctx, perType)

	return &NodeStatus{
		Node:       c.node,
		Role:       c.role,
		Version:    c.version,
		Health:     Evaluate(fields),
		Fields:     fields,
		ReportedAt: c.now().UTC(),
	}, nil
}

// registryStates are the gauge states reported per resource type
var registryStates = []string{"synced", "failed", "pending_resync", "force_redownload", "checksum_mismatch",
	"missing_on_primary", "verified"}

func (c *Collector) recordGauges(ctx context.Context, perType map[resource.Type]map[string]int64) {
	if c.metrics == nil {
		return
	}
	for _, t := range resource.Types {
		for _, state := range registryStates {
			c.metrics.RecordRegistries(ctx, string(t), state, perType[t][state])
		}
	}
}

// countRegistry adds reg to the counters and returns the states it is in
func countRegistry(f *Fields, reg *registry.Registry) []string {
	var states []string
	switch {
	case reg.Failed():
		f.Failed++
		states = append(states, "failed")
	case reg.LastSuccessfulSyncAt != nil:
		f.Synced++
		states = append(states, "synced")
	}
	if reg.ForceRedownload {
		f.ForceRedownload++
		states = append(states, "force_redownload")
	}
	if reg.ResyncPending {
		f.PendingResync++
		states = append(states, "pending_resync")
	}
	if reg.ChecksumMismatch {
		f.ChecksumMismatch++
		states = append(states, "checksum_mismatch")
	}
	if reg.MissingOnPrimary {
		f.MissingOnPrimary++
		states = append(states, "missing_on_primary")
	}
	if reg.VerificationChecksum != "" && !reg.ChecksumMismatch {
		f.Verified++
		states = append(states, "verified")
	}

	f.LastSuccessfulSyncAt = latest(f.LastSuccessfulSyncAt, reg.LastSuccessfulSyncAt)
	f.LastVerifiedAt = latest(f.LastVerifiedAt, reg.LastVerifiedAt)
	return states
}

func latest(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.After(*a) {
		v := *b
		return &v
	}
	return a
}
