//go:build integration

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-replication-server/database"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

func TestDBStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewDBStore(database.SetupTestDB(t))
	key := resource.Key{Type: resource.TypeRepository, ID: "group/project"}

	_, err := store.Get(ctx, key)
	require.ErrorIs(t, err, ErrRegistryNotFound)

	// A rejected update leaves no row behind
	reg, err := store.Update(ctx, key, func(*Registry) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, NoAttempts, reg.RetryCount)
	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, ErrRegistryNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err = store.Update(ctx, key, func(r *Registry) bool {
		r.LastSyncedAt = &now
		r.RetryCount = 3
		r.LastSyncFailure = "connection reset"
		r.VerificationChecksum = "abc"
		return true
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, "connection reset", got.LastSyncFailure)
	assert.Equal(t, "abc", got.VerificationChecksum)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, now.Equal(*got.LastSyncedAt))
	assert.Nil(t, got.RetryAt)

	wiki := resource.Key{Type: resource.TypeWiki, ID: "group/project"}
	_, err = store.Update(ctx, wiki, func(*Registry) bool { return true })
	require.NoError(t, err)

	regs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, key, regs[0].Key)
	assert.Equal(t, wiki, regs[1].Key)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, ErrRegistryNotFound)
}
