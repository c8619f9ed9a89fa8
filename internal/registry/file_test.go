package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

func TestFileStore_GetMissing(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(context.Background(), t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), resource.Key{Type: resource.TypeRepository, ID: "a/b"})
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestFileStore_UpdateCreatesLazily(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	key := resource.Key{Type: resource.TypeWiki, ID: "group/project"}

	store, err := NewFileStore(ctx, dir)
	require.NoError(t, err)

	// A no-op update does not persist anything
	reg, err := store.Update(ctx, key, func(*Registry) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, NoAttempts, reg.RetryCount)
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrRegistryNotFound)

	reg, err = store.Update(ctx, key, func(r *Registry) bool {
		r.RetryCount = 2
		r.LastSyncFailure = "timeout"
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.RetryCount)
	assert.FileExists(t, filepath.Join(dir, "wiki", "group", "project.json"))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "timeout", got.LastSyncFailure)
}

func TestFileStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	key := resource.Key{Type: resource.TypeRepository, ID: "a"}
	store, err := NewFileStore(ctx, t.TempDir())
	require.NoError(t, err)

	_, err = store.Update(ctx, key, func(r *Registry) bool { r.RetryCount = 1; return true })
	require.NoError(t, err)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	got.RetryCount = 99

	again, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, again.RetryCount)
}

func TestFileStore_ListSortedAndReloaded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	keys := []resource.Key{
		{Type: resource.TypeWiki, ID: "b"},
		{Type: resource.TypeRepository, ID: "z/y"},
		{Type: resource.TypeRepository, ID: "a"},
	}

	store, err := NewFileStore(ctx, dir)
	require.NoError(t, err)
	for _, key := range keys {
		_, err := store.Update(ctx, key, func(*Registry) bool { return true })
		require.NoError(t, err)
	}

	reloaded, err := NewFileStore(ctx, dir)
	require.NoError(t, err)
	regs, err := reloaded.List(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, "repository:a", regs[0].Key.String())
	assert.Equal(t, "repository:z/y", regs[1].Key.String())
	assert.Equal(t, "wiki:b", regs[2].Key.String())
}

func TestFileStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	key := resource.Key{Type: resource.TypeRepository, ID: "a"}
	store, err := NewFileStore(ctx, t.TempDir())
	require.NoError(t, err)

	_, err = store.Update(ctx, key, func(*Registry) bool { return true })
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting twice is not an error")

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestFileStore_RejectsInvalidKey(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(context.Background(), t.TempDir())
	require.NoError(t, err)

	_, err = store.Update(context.Background(), resource.Key{Type: resource.TypeRepository, ID: "../escape"},
		func(*Registry) bool { return true })
	assert.Error(t, err)
}

func TestFileStore_MarksInterruptedSyncs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	key := resource.Key{Type: resource.TypeRepository, ID: "a"}
	now := time.Now()

	store, err := NewFileStore(ctx, dir)
	require.NoError(t, err)
	_, err = store.Update(ctx, key, func(r *Registry) bool {
		r.LastSyncedAt = &now
		r.RetryCount = 0
		retryAt := now.Add(time.Minute)
		r.RetryAt = &retryAt
		return true
	})
	require.NoError(t, err)

	reloaded, err := NewFileStore(ctx, dir)
	require.NoError(t, err)
	reg, err := reloaded.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, InterruptedSyncFailure, reg.LastSyncFailure)
	assert.NotNil(t, reg.RetryAt, "the retry schedule is kept")
}

func TestFileStore_SkipsCorruptFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "repository"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repository", "broken.json"), []byte("{not json"), 0600))

	store, err := NewFileStore(context.Background(), dir)
	require.NoError(t, err)
	regs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestFileStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	key := resource.Key{Type: resource.TypeRepository, ID: "a"}
	store, err := NewFileStore(ctx, t.TempDir())
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, key, func(r *Registry) bool {
				r.VerificationRetryCount++
				return true
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reg, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, workers, reg.VerificationRetryCount)
}
