package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-replication-server/internal/db/sqlc"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// FileRecordStore keeps every primary checksum in one JSON document
type FileRecordStore struct {
	path string

	mu      sync.RWMutex
	records map[string]Record
}

var _ RecordStore = (*FileRecordStore)(nil)

// NewFileRecordStore loads the records stored at path
func NewFileRecordStore(path string) (*FileRecordStore, error) {
	if path == "" {
		return nil, fmt.Errorf("checksum file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create checksum directory: %w", err)
	}

	f := &FileRecordStore{path: path, records: make(map[string]Record)}
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}
	if err := json.Unmarshal(data, &f.records); err != nil {
		return nil, fmt.Errorf("failed to parse checksum file %s: %w", path, err)
	}
	return f, nil
}

// Get implements RecordStore
func (f *FileRecordStore) Get(_ context.Context, key resource.Key) (*Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	rec, ok := f.records[key.String()]
	if !ok {
		return nil, ErrNotRecorded
	}
	return &rec, nil
}

// Put implements RecordStore
func (f *FileRecordStore) Put(_ context.Context, rec Record) error {
	if err := rec.Key.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	previous, existed := f.records[rec.Key.String()]
	f.records[rec.Key.String()] = rec
	if err := f.save(); err != nil {
		if existed {
			f.records[rec.Key.String()] = previous
		} else {
			delete(f.records, rec.Key.String())
		}
		return err
	}
	return nil
}

// Delete implements RecordStore
func (f *FileRecordStore) Delete(_ context.Context, key resource.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[key.String()]; !ok {
		return nil
	}
	delete(f.records, key.String())
	return f.save()
}

func (f *FileRecordStore) save() error {
	data, err := json.MarshalIndent(f.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checksums: %w", err)
	}
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write checksums: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename checksum file: %w", err)
	}
	return nil
}

// DBRecordStore keeps primary checksums in the verification_records table
type DBRecordStore struct {
	pool *pgxpool.Pool
}

var _ RecordStore = (*DBRecordStore)(nil)

// NewDBRecordStore creates a PostgreSQL-backed RecordStore
func NewDBRecordStore(pool *pgxpool.Pool) *DBRecordStore {
	return &DBRecordStore{pool: pool}
}

// Get implements RecordStore
func (d *DBRecordStore) Get(ctx context.Context, key resource.Key) (*Record, error) {
	row, err := sqlc.New(d.pool).GetVerificationRecord(ctx, sqlc.GetVerificationRecordParams{
		ResourceType: string(key.Type),
		ResourceID:   key.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRecorded
		}
		return nil, fmt.Errorf("failed to load checksum of %s: %w", key, err)
	}
	return &Record{Key: key, Checksum: row.Checksum, VerifiedAt: row.VerifiedAt}, nil
}

// Put implements RecordStore
func (d *DBRecordStore) Put(ctx context.Context, rec Record) error {
	return sqlc.New(d.pool).UpsertVerificationRecord(ctx, sqlc.UpsertVerificationRecordParams{
		ResourceType: string(rec.Key.Type),
		ResourceID:   rec.Key.ID,
		Checksum:     rec.Checksum,
		VerifiedAt:   rec.VerifiedAt,
	})
}

// Delete implements RecordStore
func (d *DBRecordStore) Delete(ctx context.Context, key resource.Key) error {
	return sqlc.New(d.pool).DeleteVerificationRecord(ctx, sqlc.DeleteVerificationRecordParams{
		ResourceType: string(key.Type),
		ResourceID:   key.ID,
	})
}
