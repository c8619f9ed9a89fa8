package eventlog

import (
	"context"
	"sync"
	"time"
)

// Store persists events and consumer cursors.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/eventlog Store
type Store interface {
	// Append stores e and returns it with its id and creation time set.
	Append(ctx context.Context, e Event) (Event, error)
	// ListAfter returns up to limit events with an id greater than cursor, ascending.
	ListAfter(ctx context.Context, cursor int64, limit int) ([]Event, error)
	// DeleteBelow removes up to batchSize events with an id lower than below.
	DeleteBelow(ctx context.Context, below int64, batchSize int) (int64, error)
	// DeleteAll removes up to batchSize events, oldest first.
	DeleteAll(ctx context.Context, batchSize int) (int64, error)

	CursorStore

	// MinCursor returns the lowest saved cursor and the number of known consumers.
	MinCursor(ctx context.Context) (int64, int, error)
}

// CursorStore persists the last processed event id per consumer.
// Loading the cursor of an unknown consumer returns 0.
type CursorStore interface {
	LoadCursor(ctx context.Context, consumer string) (int64, error)
	SaveCursor(ctx context.Context, consumer string, id int64) error
}

// MemoryStore keeps events in process memory. Events are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []Event
	nextID  int64
	cursors map[string]int64
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory Store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		cursors: make(map[string]int64),
		now:     time.Now,
	}
}

// Append implements Store
func (m *MemoryStore) Append(_ context.Context, e Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextID
	e.CreatedAt = m.now().UTC()
	m.nextID++
	m.events = append(m.events, e)
	return e, nil
}

// ListAfter implements Store
func (m *MemoryStore) ListAfter(_ context.Context, cursor int64, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Event{}
	for _, e := range m.events {
		if e.ID <= cursor {
			continue
		}
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, e)
	}
	return result, nil
}

// DeleteBelow implements Store
func (m *MemoryStore) DeleteBelow(_ context.Context, below int64, batchSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteFront(batchSize, func(e Event) bool { return e.ID < below }), nil
}

// DeleteAll implements Store
func (m *MemoryStore) DeleteAll(_ context.Context, batchSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteFront(batchSize, func(Event) bool { return true }), nil
}

// deleteFront drops up to batchSize leading events for which match holds.
// Events are stored in id order, so the prefix is all that can match.
func (m *MemoryStore) deleteFront(batchSize int, match func(Event) bool) int64 {
	n := 0
	for n < len(m.events) && (batchSize <= 0 || n < batchSize) && match(m.events[n]) {
		n++
	}
	m.events = append([]Event(nil), m.events[n:]...)
	return int64(n)
}

// LoadCursor implements CursorStore
func (m *MemoryStore) LoadCursor(_ context.Context, consumer string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[consumer], nil
}

// SaveCursor implements CursorStore
func (m *MemoryStore) SaveCursor(_ context.Context, consumer string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[consumer] = id
	return nil
}

// MinCursor implements Store
func (m *MemoryStore) MinCursor(_ context.Context) (int64, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.cursors) == 0 {
		return 0, 0, nil
	}
	first := true
	var lowest int64
	for _, id := range m.cursors {
		if first || id < lowest {
			lowest = id
			first = false
		}
	}
	return lowest, len(m.cursors), nil
}
