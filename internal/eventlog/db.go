package eventlog

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-replication-server/internal/db/sqlc"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// DBStore persists events and cursors in PostgreSQL
type DBStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*DBStore)(nil)

// NewDBStore creates a PostgreSQL-backed Store
func NewDBStore(pool *pgxpool.Pool) *DBStore {
	return &DBStore{pool: pool}
}

// Append implements Store
func (d *DBStore) Append(ctx context.Context, e Event) (Event, error) {
	row, err := sqlc.New(d.pool).AppendEvent(ctx, sqlc.AppendEventParams{
		EventType:    string(e.Type),
		ResourceType: string(e.Resource.Type),
		ResourceID:   e.Resource.ID,
		Payload:      e.Payload,
	})
	if err != nil {
		return Event{}, fmt.Errorf("failed to append event: %w", err)
	}
	e.ID = row.ID
	e.CreatedAt = row.CreatedAt
	return e, nil
}

// ListAfter implements Store
func (d *DBStore) ListAfter(ctx context.Context, cursor int64, limit int) ([]Event, error) {
	rows, err := sqlc.New(d.pool).ListEventsAfter(ctx, sqlc.ListEventsAfterParams{
		AfterID:   cursor,
		MaxEvents: limitToInt32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, Event{
			ID:        row.ID,
			Type:      Type(row.EventType),
			Resource:  resource.Key{Type: resource.Type(row.ResourceType), ID: row.ResourceID},
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return events, nil
}

// DeleteBelow implements Store
func (d *DBStore) DeleteBelow(ctx context.Context, below int64, batchSize int) (int64, error) {
	return sqlc.New(d.pool).DeleteEventsBelow(ctx, sqlc.DeleteEventsBelowParams{
		BelowID:   below,
		BatchSize: limitToInt32(batchSize),
	})
}

// DeleteAll implements Store
func (d *DBStore) DeleteAll(ctx context.Context, batchSize int) (int64, error) {
	return sqlc.New(d.pool).DeleteAllEvents(ctx, limitToInt32(batchSize))
}

// LoadCursor implements CursorStore
func (d *DBStore) LoadCursor(ctx context.Context, consumer string) (int64, error) {
	id, err := sqlc.New(d.pool).GetEventCursor(ctx, consumer)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load cursor for %s: %w", consumer, err)
	}
	return id, nil
}

// SaveCursor implements CursorStore
func (d *DBStore) SaveCursor(ctx context.Context, consumer string, id int64) error {
	return sqlc.New(d.pool).UpsertEventCursor(ctx, sqlc.UpsertEventCursorParams{
		Consumer:    consumer,
		LastEventID: id,
	})
}

// MinCursor implements Store
func (d *DBStore) MinCursor(ctx context.Context) (int64, int, error) {
	row, err := sqlc.New(d.pool).GetMinEventCursor(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute minimum cursor: %w", err)
	}
	return row.MinEventID, int(row.Consumers), nil
}

// limitToInt32 maps non-positive and oversized limits to the int32 maximum
func limitToInt32(limit int) int32 {
	if limit <= 0 || limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(limit)
}
