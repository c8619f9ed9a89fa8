package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileCursorStore keeps consumer cursors in a single JSON document.
// Secondaries in file storage mode use it to survive restarts.
type FileCursorStore struct {
	path string
	mu   sync.Mutex
}

var _ CursorStore = (*FileCursorStore)(nil)

// NewFileCursorStore creates a cursor store backed by path
func NewFileCursorStore(path string) (*FileCursorStore, error) {
	if path == "" {
		return nil, fmt.Errorf("cursor file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create cursor directory: %w", err)
	}
	return &FileCursorStore{path: path}, nil
}

// LoadCursor implements CursorStore
func (f *FileCursorStore) LoadCursor(_ context.Context, consumer string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cursors, err := f.read()
	if err != nil {
		return 0, err
	}
	return cursors[consumer], nil
}

// SaveCursor implements CursorStore
func (f *FileCursorStore) SaveCursor(_ context.Context, consumer string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cursors, err := f.read()
	if err != nil {
		return err
	}
	cursors[consumer] = id

	data, err := json.MarshalIndent(cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cursors: %w", err)
	}
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write cursors: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cursor file: %w", err)
	}
	return nil
}

func (f *FileCursorStore) read() (map[string]int64, error) {
	cursors := make(map[string]int64)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cursors, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cursors: %w", err)
	}
	if err := json.Unmarshal(data, &cursors); err != nil {
		return nil, fmt.Errorf("failed to parse cursor file %s: %w", f.path, err)
	}
	return cursors, nil
}
