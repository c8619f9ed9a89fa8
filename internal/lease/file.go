package lease

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

var _ Manager = (*FileManager)(nil)

// FileManager grants leases backed by advisory file locks below a directory.
// The operating system releases the lock when the holding process exits, so
// leases never outlive a crashed holder and the timeout is informational.
// Leases are exclusive across processes on the same host only.
type FileManager struct {
	dir string

	mu    sync.Mutex
	locks map[string]*flock.Flock // by token
}

// NewFileManager creates a file lock based lease manager rooted at dir
func NewFileManager(dir string) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lease directory: %w", err)
	}
	return &FileManager{
		dir:   dir,
		locks: make(map[string]*flock.Flock),
	}, nil
}

// lockPath hashes the key so arbitrary resource ids map to flat file names
func (f *FileManager) lockPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".lock")
}

// TryAcquire implements Manager
func (f *FileManager) TryAcquire(_ context.Context, key string, timeout time.Duration) (*Lease, bool, error) {
	fl := flock.New(f.lockPath(key))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock %s: %w", key, err)
	}
	if !locked {
		return nil, false, nil
	}

	timeout = timeoutOrDefault(timeout)
	l := &Lease{
		Key:       key,
		Token:     uuid.NewString(),
		Timeout:   timeout,
		ExpiresAt: time.Now().Add(timeout),
	}

	f.mu.Lock()
	f.locks[l.Token] = fl
	f.mu.Unlock()
	return l, true, nil
}

// Renew implements Manager
func (f *FileManager) Renew(_ context.Context, l *Lease) (bool, error) {
	f.mu.Lock()
	fl, ok := f.locks[l.Token]
	f.mu.Unlock()

	if !ok || !fl.Locked() {
		return false, nil
	}
	l.ExpiresAt = time.Now().Add(l.Timeout)
	return true, nil
}

// Release implements Manager
func (f *FileManager) Release(_ context.Context, l *Lease) error {
	f.mu.Lock()
	fl, ok := f.locks[l.Token]
	delete(f.locks, l.Token)
	f.mu.Unlock()

	if !ok {
		return nil
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.Key, err)
	}
	return nil
}
