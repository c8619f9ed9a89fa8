package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
)

const (
	// DefaultBatchSize is the number of events returned by a single drain
	DefaultBatchSize = 500

	// DefaultPruneBatchSize is the number of events deleted per prune statement
	DefaultPruneBatchSize = 1000
)

// ActiveFunc reports whether new events should be recorded
type ActiveFunc func(ctx context.Context) bool

// Log is the primary-side change event log
type Log struct {
	store   Store
	active  ActiveFunc
	metrics *telemetry.EventMetrics
}

// Option configures a Log
type Option func(*Log)

// WithActiveCheck sets the predicate deciding whether Append records events.
// Without it every append is recorded.
func WithActiveCheck(fn ActiveFunc) Option {
	return func(l *Log) {
		if fn != nil {
			l.active = fn
		}
	}
}

// WithMetrics sets the event metrics. A nil value disables them.
func WithMetrics(m *telemetry.EventMetrics) Option {
	return func(l *Log) {
		l.metrics = m
	}
}

// NewLog creates a Log on top of store
func NewLog(store Store, opts ...Option) *Log {
	l := &Log{
		store:  store,
		active: func(context.Context) bool { return true },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records one event and returns its id.
// When the log is inactive nothing is stored and the id is 0.
func (l *Log) Append(ctx context.Context, eventType Type, key resource.Key, payload any) (int64, error) {
	if !eventType.Valid() {
		return 0, fmt.Errorf("unknown event type: %q", eventType)
	}
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if !l.active(ctx) {
		slog.DebugContext(ctx, "Event log inactive, dropping event", "type", eventType, "resource", key.String())
		return 0, nil
	}

	data, err := encodePayload(payload)
	if err != nil {
		return 0, err
	}

	stored, err := l.store.Append(ctx, Event{Type: eventType, Resource: key, Payload: data})
	if err != nil {
		return 0, err
	}
	l.metrics.RecordAppended(ctx, string(eventType))
	return stored.ID, nil
}

// Drain returns up to limit events after cursor, in id order, and the new cursor.
// The cursor is unchanged when no events are pending.
func (l *Log) Drain(ctx context.Context, cursor int64, limit int) ([]Event, int64, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	events, err := l.store.ListAfter(ctx, cursor, limit)
	if err != nil {
		return nil, cursor, err
	}
	if len(events) == 0 {
		return events, cursor, nil
	}
	return events, events[len(events)-1].ID, nil
}

// LoadCursor returns the saved cursor of consumer
func (l *Log) LoadCursor(ctx context.Context, consumer string) (int64, error) {
	return l.store.LoadCursor(ctx, consumer)
}

// SaveCursor records that consumer processed every event up to id
func (l *Log) SaveCursor(ctx context.Context, consumer string, id int64) error {
	return l.store.SaveCursor(ctx, consumer, id)
}

// PruneOptions controls Prune
type PruneOptions struct {
	// Full removes every event regardless of consumer cursors
	Full bool
	// BatchSize bounds the rows deleted per statement
	BatchSize int
}

// Prune removes events every known consumer has moved past, in batches.
// Without consumers nothing is removed unless a full purge is requested.
func (l *Log) Prune(ctx context.Context, opts PruneOptions) (int64, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultPruneBatchSize
	}

	var deleteBatch func() (int64, error)
	if opts.Full {
		deleteBatch = func() (int64, error) { return l.store.DeleteAll(ctx, batchSize) }
	} else {
		lowWaterMark, consumers, err := l.store.MinCursor(ctx)
		if err != nil {
			return 0, err
		}
		if consumers == 0 || lowWaterMark <= 0 {
			return 0, nil
		}
		deleteBatch = func() (int64, error) { return l.store.DeleteBelow(ctx, lowWaterMark, batchSize) }
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := deleteBatch()
		if err != nil {
			return total, fmt.Errorf("failed to prune events: %w", err)
		}
		total += n
		if n < int64(batchSize) {
			break
		}
	}

	l.metrics.RecordPruned(ctx, total)
	if total > 0 {
		slog.InfoContext(ctx, "Pruned change events", "count", total, "full", opts.Full)
	}
	return total, nil
}
