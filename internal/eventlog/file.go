package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

const (
	eventsFileName = "events.jsonl"
	metaFileName   = "events-meta.json"
	lockFileName   = "events.lock"
)

// fileMeta is rewritten on every mutation. Generation lets another process
// sharing the directory notice that its cached view is stale.
type fileMeta struct {
	Generation int64            `json:"generation"`
	NextID     int64            `json:"nextId"`
	Cursors    map[string]int64 `json:"cursors"`
}

// FileStore persists events as JSON lines below a directory, with the next
// id and consumer cursors in a separate document. Ids keep increasing across
// restarts and full prunes. Processes on the same host coordinate through an
// advisory file lock, so a one-shot prune can run next to a serving node.
type FileStore struct {
	dir  string
	lock *flock.Flock

	mu         sync.Mutex
	mem        *MemoryStore
	generation int64
	loaded     bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed Store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("event log directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	return &FileStore{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
		mem:  NewMemoryStore(),
	}, nil
}

// Append implements Store
func (f *FileStore) Append(ctx context.Context, e Event) (Event, error) {
	var stored Event
	err := f.withLock(ctx, func(mem *MemoryStore) error {
		var err error
		if stored, err = mem.Append(ctx, e); err != nil {
			return err
		}
		line, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		if err := f.appendLine(line); err != nil {
			return err
		}
		return f.writeMeta(mem)
	})
	return stored, err
}

// ListAfter implements Store
func (f *FileStore) ListAfter(ctx context.Context, cursor int64, limit int) ([]Event, error) {
	var events []Event
	err := f.withLock(ctx, func(mem *MemoryStore) error {
		var err error
		events, err = mem.ListAfter(ctx, cursor, limit)
		return err
	})
	return events, err
}

// DeleteBelow implements Store
func (f *FileStore) DeleteBelow(ctx context.Context, below int64, batchSize int) (int64, error) {
	return f.delete(ctx, func(mem *MemoryStore) (int64, error) {
		return mem.DeleteBelow(ctx, below, batchSize)
	})
}

// DeleteAll implements Store
func (f *FileStore) DeleteAll(ctx context.Context, batchSize int) (int64, error) {
	return f.delete(ctx, func(mem *MemoryStore) (int64, error) {
		return mem.DeleteAll(ctx, batchSize)
	})
}

func (f *FileStore) delete(ctx context.Context, del func(mem *MemoryStore) (int64, error)) (int64, error) {
	var n int64
	err := f.withLock(ctx, func(mem *MemoryStore) error {
		var err error
		if n, err = del(mem); err != nil || n == 0 {
			return err
		}
		// The next id is saved first so a crash between the writes cannot reuse ids
		if err := f.writeMeta(mem); err != nil {
			return err
		}
		return f.rewriteEvents(mem.events)
	})
	return n, err
}

// LoadCursor implements CursorStore
func (f *FileStore) LoadCursor(ctx context.Context, consumer string) (int64, error) {
	var id int64
	err := f.withLock(ctx, func(mem *MemoryStore) error {
		var err error
		id, err = mem.LoadCursor(ctx, consumer)
		return err
	})
	return id, err
}

// SaveCursor implements CursorStore
func (f *FileStore) SaveCursor(ctx context.Context, consumer string, id int64) error {
	return f.withLock(ctx, func(mem *MemoryStore) error {
		if err := mem.SaveCursor(ctx, consumer, id); err != nil {
			return err
		}
		return f.writeMeta(mem)
	})
}

// MinCursor implements Store
func (f *FileStore) MinCursor(ctx context.Context) (int64, int, error) {
	var (
		lowest int64
		count  int
	)
	err := f.withLock(ctx, func(mem *MemoryStore) error {
		var err error
		lowest, count, err = mem.MinCursor(ctx)
		return err
	})
	return lowest, count, err
}

// withLock runs fn against an up to date view of the files while holding
// both the process mutex and the file lock. A failed fn drops the cached view.
func (f *FileStore) withLock(ctx context.Context, fn func(mem *MemoryStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock event log: %w", err)
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			slog.Warn("Failed to unlock event log", "error", err)
		}
	}()

	if err := f.refresh(); err != nil {
		return err
	}
	if err := fn(f.mem); err != nil {
		f.loaded = false
		return err
	}
	return nil
}

// refresh reloads the files when they changed since the last load
func (f *FileStore) refresh() error {
	meta, err := f.readMeta()
	if err != nil {
		return err
	}
	if f.loaded && meta.Generation == f.generation {
		return nil
	}

	events, torn, err := f.readEvents()
	if err != nil {
		return err
	}
	if torn {
		// Later appends would otherwise extend the partial line
		if err := f.rewriteEvents(events); err != nil {
			return err
		}
	}

	mem := NewMemoryStore()
	mem.events = events
	mem.nextID = max(meta.NextID, 1)
	if n := len(events); n > 0 && events[n-1].ID >= mem.nextID {
		mem.nextID = events[n-1].ID + 1
	}
	for consumer, id := range meta.Cursors {
		mem.cursors[consumer] = id
	}

	f.mem = mem
	f.generation = meta.Generation
	f.loaded = true
	return nil
}

func (f *FileStore) readMeta() (fileMeta, error) {
	var meta fileMeta
	data, err := os.ReadFile(filepath.Join(f.dir, metaFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read event log metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse event log metadata: %w", err)
	}
	return meta, nil
}

func (f *FileStore) writeMeta(mem *MemoryStore) error {
	f.generation++
	meta := fileMeta{
		Generation: f.generation,
		NextID:     mem.nextID,
		Cursors:    mem.cursors,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode event log metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(f.dir, metaFileName), data)
}

// readEvents loads the event lines. A torn last line left by a crash is dropped.
func (f *FileStore) readEvents() ([]Event, bool, error) {
	path := filepath.Join(f.dir, eventsFileName)
	file, err := os.Open(path) // #nosec G304 -- path is built from the configured data dir
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	var (
		events  []Event
		pending error
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if pending != nil {
			return nil, false, pending
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			pending = fmt.Errorf("corrupt event log %s: %w", path, err)
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read event log: %w", err)
	}
	if pending != nil {
		slog.Warn("Dropping torn event log entry", "path", path, "error", pending)
		return events, true, nil
	}
	return events, false, nil
}

func (f *FileStore) appendLine(line []byte) error {
	path := filepath.Join(f.dir, eventsFileName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- see readEvents
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat event log: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		// A partial line would merge with the next append
		_ = file.Truncate(info.Size())
		_ = file.Close()
		return fmt.Errorf("failed to append event: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to sync event log: %w", err)
	}
	return file.Close()
}

func (f *FileStore) rewriteEvents(events []Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event %d: %w", e.ID, err)
		}
	}
	return writeFileAtomic(filepath.Join(f.dir, eventsFileName), buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
