//go:build integration

package eventlog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-replication-server/database"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
)

func TestDBStore(t *testing.T) {
	ctx := context.Background()
	pool := database.SetupTestDB(t)
	log := eventlog.NewLog(eventlog.NewDBStore(pool))

	ids := appendAll(t, log, repoA, repoB, wikiA)

	events, cursor, err := log.Drain(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, ids[2], cursor)
	assert.Equal(t, repoA, events[0].Resource)
	assert.JSONEq(t, `{}`, string(events[0].Payload))

	empty, next, err := log.Drain(ctx, cursor, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, cursor, next)

	missing, err := log.LoadCursor(ctx, "replica-1")
	require.NoError(t, err)
	assert.Zero(t, missing)

	require.NoError(t, log.SaveCursor(ctx, "replica-1", ids[1]))
	require.NoError(t, log.SaveCursor(ctx, "replica-1", ids[2]))
	require.NoError(t, log.SaveCursor(ctx, "replica-2", ids[1]))

	pruned, err := log.Prune(ctx, eventlog.PruneOptions{BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	pruned, err = log.Prune(ctx, eventlog.PruneOptions{Full: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)
}
