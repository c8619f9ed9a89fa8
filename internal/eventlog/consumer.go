package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
)

// Source yields events after a cursor. Both a local Log and a client of the
// primary's event endpoint satisfy it.
//
//go:generate mockgen -destination=mocks/mock_source.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/eventlog Source
type Source interface {
	Drain(ctx context.Context, cursor int64, limit int) ([]Event, int64, error)
}

// HandlerFunc applies a single event. It must tolerate redelivery.
type HandlerFunc func(ctx context.Context, e Event) error

// Consumer drains a Source and dispatches events by type
type Consumer struct {
	name      string
	source    Source
	cursors   CursorStore
	handlers  map[Type]HandlerFunc
	batchSize int
	metrics   *telemetry.EventMetrics
}

// ConsumerOption configures a Consumer
type ConsumerOption func(*Consumer)

// WithHandler registers the handler for an event type, replacing any previous one
func WithHandler(t Type, h HandlerFunc) ConsumerOption {
	return func(c *Consumer) {
		c.handlers[t] = h
	}
}

// WithHandlers registers several handlers at once
func WithHandlers(handlers map[Type]HandlerFunc) ConsumerOption {
	return func(c *Consumer) {
		for t, h := range handlers {
			c.handlers[t] = h
		}
	}
}

// WithBatchSize sets how many events are requested per drain
func WithBatchSize(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithConsumerMetrics sets the event metrics
func WithConsumerMetrics(m *telemetry.EventMetrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// NewConsumer creates a consumer named name. The name keys its cursor.
func NewConsumer(name string, source Source, cursors CursorStore, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		name:      name,
		source:    source,
		cursors:   cursors,
		handlers:  make(map[Type]HandlerFunc),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the consumer name
func (c *Consumer) Name() string {
	return c.name
}

// Run drains the source until no events are pending and returns how many
// events were processed. The cursor is saved after every batch. When a handler
// fails, the cursor stops at the last event that was applied.
func (c *Consumer) Run(ctx context.Context) (int, error) {
	cursor, err := c.cursors.LoadCursor(ctx, c.name)
	if err != nil {
		return 0, fmt.Errorf("failed to load cursor: %w", err)
	}

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		events, next, err := c.source.Drain(ctx, cursor, c.batchSize)
		if err != nil {
			return processed, fmt.Errorf("failed to drain events after %d: %w", cursor, err)
		}
		if len(events) == 0 {
			return processed, nil
		}

		applied := cursor
		for _, e := range events {
			if err := c.dispatch(ctx, e); err != nil {
				if applied > cursor {
					if saveErr := c.cursors.SaveCursor(ctx, c.name, applied); saveErr != nil {
						slog.WarnContext(ctx, "Failed to save event cursor", "consumer", c.name, "error", saveErr)
					}
				}
				return processed, fmt.Errorf("failed to apply event %d (%s): %w", e.ID, e.Type, err)
			}
			applied = e.ID
			processed++
		}

		if next < applied {
			next = applied
		}
		if err := c.cursors.SaveCursor(ctx, c.name, next); err != nil {
			return processed, fmt.Errorf("failed to save cursor: %w", err)
		}
		cursor = next

		if len(events) < c.batchSize {
			return processed, nil
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, e Event) error {
	handler, ok := c.handlers[e.Type]
	if !ok {
		slog.DebugContext(ctx, "Ignoring event without handler", "id", e.ID, "type", e.Type)
		return nil
	}
	if err := handler(ctx, e); err != nil {
		return err
	}
	c.metrics.RecordApplied(ctx, string(e.Type))
	return nil
}
