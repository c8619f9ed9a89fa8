package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

var _ Manager = (*MemoryManager)(nil)

// MemoryManager keeps leases in process memory. It is only suitable for a
// single process, such as tests and one-shot commands.
type MemoryManager struct {
	mu     sync.Mutex
	leases map[string]memoryEntry
	now    func() time.Time
}

// MemoryOption configures a MemoryManager
type MemoryOption func(*MemoryManager)

// WithClock replaces the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryManager) {
		m.now = now
	}
}

// NewMemoryManager creates an in-memory lease manager
func NewMemoryManager(opts ...MemoryOption) *MemoryManager {
	m := &MemoryManager{
		leases: make(map[string]memoryEntry),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TryAcquire implements Manager
func (m *MemoryManager) TryAcquire(_ context.Context, key string, timeout time.Duration) (*Lease, bool, error) {
	timeout = timeoutOrDefault(timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if current, ok := m.leases[key]; ok && now.Before(current.expiresAt) {
		return nil, false, nil
	}

	l := &Lease{
		Key:       key,
		Token:     uuid.NewString(),
		Timeout:   timeout,
		ExpiresAt: now.Add(timeout),
	}
	m.leases[key] = memoryEntry{token: l.Token, expiresAt: l.ExpiresAt}
	return l, true, nil
}

// Renew implements Manager
func (m *MemoryManager) Renew(_ context.Context, l *Lease) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.leases[l.Key]
	if !ok || current.token != l.Token {
		return false, nil
	}
	l.ExpiresAt = m.now().Add(l.Timeout)
	m.leases[l.Key] = memoryEntry{token: l.Token, expiresAt: l.ExpiresAt}
	return true, nil
}

// Release implements Manager
func (m *MemoryManager) Release(_ context.Context, l *Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.leases[l.Key]; ok && current.token == l.Token {
		delete(m.leases, l.Key)
	}
	return nil
}
