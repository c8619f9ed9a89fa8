package eventlog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog/mocks"
)

func TestConsumer_RunAppliesEventsInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := eventlog.NewLog(eventlog.NewMemoryStore())
	ids := appendAll(t, log, repoA, repoB, wikiA)
	_, err := log.Append(ctx, eventlog.TypeCacheInvalidated, repoA, nil)
	require.NoError(t, err)

	var seen []int64
	cursors := eventlog.NewMemoryStore()
	consumer := eventlog.NewConsumer("replica-1", log, cursors,
		eventlog.WithBatchSize(2),
		eventlog.WithHandler(eventlog.TypeRepositoryUpdated, func(_ context.Context, e eventlog.Event) error {
			seen = append(seen, e.ID)
			return nil
		}),
	)

	processed, err := consumer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, processed, "events without a handler still advance the cursor")
	assert.Equal(t, ids, seen)

	cursor, err := cursors.LoadCursor(ctx, "replica-1")
	require.NoError(t, err)
	assert.Equal(t, ids[2]+1, cursor)

	processed, err = consumer.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestConsumer_HandlerFailureStopsAtLastAppliedEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := eventlog.NewLog(eventlog.NewMemoryStore())
	ids := appendAll(t, log, repoA, repoB, wikiA)

	cursors := eventlog.NewMemoryStore()
	failing := true
	consumer := eventlog.NewConsumer("replica-1", log, cursors,
		eventlog.WithHandler(eventlog.TypeRepositoryUpdated, func(_ context.Context, e eventlog.Event) error {
			if e.Resource == repoB && failing {
				return errors.New("disk full")
			}
			return nil
		}),
	)

	processed, err := consumer.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, processed)

	cursor, err := cursors.LoadCursor(ctx, "replica-1")
	require.NoError(t, err)
	assert.Equal(t, ids[0], cursor)

	// Redelivery resumes at the failed event
	failing = false
	processed, err = consumer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
}

func TestConsumer_SourceError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	source.EXPECT().Drain(gomock.Any(), int64(42), 500).Return(nil, int64(42), errors.New("primary unreachable"))

	cursors := eventlog.NewMemoryStore()
	require.NoError(t, cursors.SaveCursor(context.Background(), "replica-1", 42))

	consumer := eventlog.NewConsumer("replica-1", source, cursors)
	_, err := consumer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary unreachable")
}

func TestConsumer_CancelledContext(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	consumer := eventlog.NewConsumer("replica-1", source, eventlog.NewMemoryStore())
	_, err := consumer.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsumer_ResumesAfterPrimaryRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primaryDir := t.TempDir()
	cursorPath := filepath.Join(t.TempDir(), "cursor.json")

	newConsumer := func(source eventlog.Source) *eventlog.Consumer {
		cursors, err := eventlog.NewFileCursorStore(cursorPath)
		require.NoError(t, err)
		return eventlog.NewConsumer("replica-1", source, cursors,
			eventlog.WithHandler(eventlog.TypeRepositoryUpdated, func(context.Context, eventlog.Event) error { return nil }),
		)
	}

	appendAll(t, openFileLog(t, primaryDir), repoA, repoB, wikiA)
	processed, err := newConsumer(openFileLog(t, primaryDir)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	// Both nodes restart, the primary records one more change
	restarted := openFileLog(t, primaryDir)
	appendAll(t, restarted, repoB)

	processed, err = newConsumer(restarted).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}
