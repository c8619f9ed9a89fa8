package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/lease"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

// File-mode state lives below <dataDir>/state
const (
	stateDirName      = "state"
	registriesDirName = "registries"
	leasesDirName     = "leases"
	statusDirName     = "status"
	eventsDirName     = "events"
	cursorFileName    = "cursor.json"
	checksumsFileName = "checksums.json"
)

// FileFactory creates components persisted on the local filesystem.
// File storage serves a single host; leases are not shared across machines.
type FileFactory struct {
	stateDir string

	// One instance so the log and the API share its cached view
	events *eventlog.FileStore
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a file-based factory, creating the state directory
func NewFileFactory(cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	stateDir := filepath.Join(cfg.GetDataDir(), stateDirName)
	if err := os.MkdirAll(stateDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	events, err := eventlog.NewFileStore(filepath.Join(stateDir, eventsDirName))
	if err != nil {
		return nil, err
	}

	slog.Info("Creating file-based storage factory", "state_dir", stateDir)

	return &FileFactory{
		stateDir: stateDir,
		events:   events,
	}, nil
}

// CreateRegistryStore creates a file store. Attempts interrupted by a
// previous shutdown are marked as failed while loading.
func (f *FileFactory) CreateRegistryStore(ctx context.Context) (registry.Store, error) {
	return registry.NewFileStore(ctx, filepath.Join(f.stateDir, registriesDirName))
}

// CreateLeaseManager creates a manager backed by lock files
func (f *FileFactory) CreateLeaseManager(_ context.Context) (lease.Manager, error) {
	return lease.NewFileManager(filepath.Join(f.stateDir, leasesDirName))
}

// CreateEventStore returns the event log persisted as JSON lines
func (f *FileFactory) CreateEventStore(_ context.Context) (eventlog.Store, error) {
	return f.events, nil
}

// CreateCursorStore creates a cursor persisted in a JSON file
func (f *FileFactory) CreateCursorStore(_ context.Context) (eventlog.CursorStore, error) {
	return eventlog.NewFileCursorStore(filepath.Join(f.stateDir, cursorFileName))
}

// CreateRecordStore creates a record store persisted in a JSON file
func (f *FileFactory) CreateRecordStore(_ context.Context) (verification.RecordStore, error) {
	return verification.NewFileRecordStore(filepath.Join(f.stateDir, checksumsFileName))
}

// CreateStatusPersistence stores one JSON file per node
func (f *FileFactory) CreateStatusPersistence(_ context.Context) (status.Persistence, error) {
	return status.NewFilePersistence(filepath.Join(f.stateDir, statusDirName)), nil
}

// Ping checks that the state directory is still accessible
func (f *FileFactory) Ping(_ context.Context) error {
	if _, err := os.Stat(f.stateDir); err != nil {
		return fmt.Errorf("state directory unavailable: %w", err)
	}
	return nil
}

// Cleanup is a no-op for file storage
func (*FileFactory) Cleanup() {}
