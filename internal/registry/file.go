package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

const (
	registryFileExt = ".json"
	// InterruptedSyncFailure is recorded for attempts that never reported an outcome
	InterruptedSyncFailure = "previous sync was interrupted"
)

// fileStore keeps one JSON document per registry below baseDir and serves
// reads from an in-memory cache. It assumes a single process owns baseDir.
type fileStore struct {
	baseDir string

	mu    sync.RWMutex
	cache map[resource.Key]*Registry
}

// NewFileStore loads every registry below baseDir and returns a file-backed Store.
// Registries whose last attempt never recorded an outcome are marked as failed.
func NewFileStore(ctx context.Context, baseDir string) (Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("registry directory is required")
	}
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	f := &fileStore{
		baseDir: baseDir,
		cache:   make(map[resource.Key]*Registry),
	}
	if err := f.load(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fileStore) Get(_ context.Context, key resource.Key) (*Registry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	reg, ok := f.cache[key]
	if !ok {
		return nil, ErrRegistryNotFound
	}
	return reg.Clone(), nil
}

func (f *fileStore) List(_ context.Context) ([]*Registry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]*Registry, 0, len(f.cache))
	for _, reg := range f.cache {
		result = append(result, reg.Clone())
	}
	sortRegistries(result)
	return result, nil
}

func (f *fileStore) Update(_ context.Context, key resource.Key, updateFn func(reg *Registry) bool) (*Registry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, exists := f.cache[key]
	var reg *Registry
	if exists {
		reg = current.Clone()
	} else {
		reg = New(key)
	}

	if !updateFn(reg) {
		if !exists {
			return New(key), nil
		}
		return current.Clone(), nil
	}

	// updateFn must not move the registry to another key
	reg.Key = key
	if err := f.save(reg); err != nil {
		return nil, err
	}
	f.cache[key] = reg
	return reg.Clone(), nil
}

func (f *fileStore) Delete(_ context.Context, key resource.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete registry %s: %w", key, err)
	}
	delete(f.cache, key)
	return nil
}

// path returns <baseDir>/<type>/<id>.json
func (f *fileStore) path(key resource.Key) string {
	return filepath.Join(f.baseDir, string(key.Type), filepath.FromSlash(key.ID)+registryFileExt)
}

func (f *fileStore) save(reg *Registry) error {
	filePath := f.path(reg.Key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return fmt.Errorf("failed to create directory for registry %s: %w", reg.Key, err)
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry %s: %w", reg.Key, err)
	}

	// Write to a temporary file first so readers never observe a partial document
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write registry %s: %w", reg.Key, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename registry file for %s: %w", reg.Key, err)
	}
	return nil
}

func (f *fileStore) load(ctx context.Context) error {
	return filepath.WalkDir(f.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, registryFileExt) {
			return nil
		}

		reg, err := readRegistry(path)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable registry file", "path", path, "error", err)
			return nil
		}
		if err := reg.Key.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping registry file with invalid key", "path", path, "error", err)
			return nil
		}

		if interrupted(reg) {
			slog.WarnContext(ctx, "Previous sync was interrupted, marking as failed", "resource", reg.Key.String())
			reg.LastSyncFailure = InterruptedSyncFailure
			if err := f.save(reg); err != nil {
				slog.WarnContext(ctx, "Failed to persist interrupted registry", "resource", reg.Key.String(), "error", err)
			}
		}

		f.cache[reg.Key] = reg
		return nil
	})
}

func readRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// interrupted reports whether the last attempt started but never recorded an outcome.
// Successful attempts clear RetryAt and failed ones record a failure message.
func interrupted(reg *Registry) bool {
	return reg.RetryAt != nil && reg.LastSyncFailure == "" && reg.LastSyncedAt != nil
}

func sortRegistries(regs []*Registry) {
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Key.Type != regs[j].Key.Type {
			return regs[i].Key.Type < regs[j].Key.Type
		}
		return regs[i].Key.ID < regs[j].Key.ID
	})
}
