package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/toolhive-replication-server/sync"

	// VerificationMetricsMeterName is the name used for the verification metrics meter
	VerificationMetricsMeterName = "github.com/stacklok/toolhive-replication-server/verification"

	// EventMetricsMeterName is the name used for the event log metrics meter
	EventMetricsMeterName = "github.com/stacklok/toolhive-replication-server/events"
)

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	syncDuration   metric.Float64Histogram
	registryStates metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"thv_repl_sync_duration_seconds",
		metric.WithDescription("Duration of sync operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900, 3600),
	)
	if err != nil {
		return nil, err
	}

	registryStates, err := meter.Int64Gauge(
		"thv_repl_registries",
		metric.WithDescription("Number of tracked registries by resource type and state"),
		metric.WithUnit("{registry}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:   syncDuration,
		registryStates: registryStates,
	}, nil
}

// RecordSyncDuration records the duration of a sync attempt by its outcome
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, resourceType, outcome string, duration time.Duration) {
	if m == nil || m.syncDuration == nil {
		return
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("resource_type", resourceType),
		attribute.String("outcome", outcome),
	))
}

// RecordRegistries records how many registries of a resource type are in a state
func (m *SyncMetrics) RecordRegistries(ctx context.Context, resourceType, state string, count int64) {
	if m == nil || m.registryStates == nil {
		return
	}

	m.registryStates.Record(ctx, count, metric.WithAttributes(
		attribute.String("resource_type", resourceType),
		attribute.String("state", state),
	))
}

// VerificationMetrics holds the OpenTelemetry instruments for checksum verification
type VerificationMetrics struct {
	outcomes metric.Int64Counter
}

// NewVerificationMetrics creates a new VerificationMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewVerificationMetrics(provider metric.MeterProvider) (*VerificationMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	outcomes, err := provider.Meter(VerificationMetricsMeterName).Int64Counter(
		"thv_repl_verifications_total",
		metric.WithDescription("Number of verification attempts by outcome"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, err
	}

	return &VerificationMetrics{outcomes: outcomes}, nil
}

// RecordOutcome counts one verification attempt
func (m *VerificationMetrics) RecordOutcome(ctx context.Context, resourceType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}

	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_type", resourceType),
		attribute.String("outcome", outcome),
	))
}

// EventMetrics holds the OpenTelemetry instruments for the change event log
type EventMetrics struct {
	appended metric.Int64Counter
	applied  metric.Int64Counter
	pruned   metric.Int64Counter
}

// NewEventMetrics creates a new EventMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewEventMetrics(provider metric.MeterProvider) (*EventMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(EventMetricsMeterName)

	appended, err := meter.Int64Counter(
		"thv_repl_events_appended_total",
		metric.WithDescription("Number of change events appended by the primary"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	applied, err := meter.Int64Counter(
		"thv_repl_events_applied_total",
		metric.WithDescription("Number of change events applied by a secondary"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	pruned, err := meter.Int64Counter(
		"thv_repl_events_pruned_total",
		metric.WithDescription("Number of change events removed from the log"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &EventMetrics{appended: appended, applied: applied, pruned: pruned}, nil
}

// RecordAppended counts an appended event
func (m *EventMetrics) RecordAppended(ctx context.Context, eventType string) {
	if m == nil || m.appended == nil {
		return
	}
	m.appended.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordApplied counts an event applied by a consumer
func (m *EventMetrics) RecordApplied(ctx context.Context, eventType string) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordPruned counts pruned events
func (m *EventMetrics) RecordPruned(ctx context.Context, count int64) {
	if m == nil || m.pruned == nil || count <= 0 {
		return
	}
	m.pruned.Add(ctx, count)
}
