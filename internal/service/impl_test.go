package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/service"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

var projectKey = resource.Key{Type: resource.TypeRepository, ID: "group/project"}

type fixture struct {
	store      registry.Store
	log        *eventlog.Log
	events     *eventlog.MemoryStore
	records    *verification.FileRecordStore
	aggregator *status.Aggregator
	repoRoot   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := registry.NewFileStore(ctx, filepath.Join(dir, "registries"))
	require.NoError(t, err)
	require.NoError(t, registry.Seed(ctx, store, []resource.Key{projectKey}))

	records, err := verification.NewFileRecordStore(filepath.Join(dir, "checksums.json"))
	require.NoError(t, err)

	aggregator, err := status.NewAggregator(ctx, status.NewFilePersistence(filepath.Join(dir, "status")),
		[]string{"secondary-1"}, "v1.2.0")
	require.NoError(t, err)

	events := eventlog.NewMemoryStore()
	return &fixture{
		store:      store,
		log:        eventlog.NewLog(events),
		events:     events,
		records:    records,
		aggregator: aggregator,
		repoRoot:   filepath.Join(dir, "repositories"),
	}
}

func (f *fixture) primary(t *testing.T, opts ...service.Option) service.ReplicationService {
	t.Helper()
	collector := status.NewCollector("primary", "primary", "v1.2.0", f.store)
	opts = append([]service.Option{
		service.WithAggregator(f.aggregator),
		service.WithEventSource(f.log),
		service.WithChecksums(verification.NewLocalChecksums(f.records, f.repoRoot)),
	}, opts...)
	svc, err := service.New(collector, opts...)
	require.NoError(t, err)
	return svc
}

func (f *fixture) secondary(t *testing.T) service.ReplicationService {
	t.Helper()
	svc, err := service.New(status.NewCollector("secondary-1", "secondary", "v1.2.0", f.store))
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresCollector(t *testing.T) {
	t.Parallel()

	svc, err := service.New(nil)
	require.Error(t, err)
	assert.Nil(t, svc)
}

func TestCheckReadiness(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assert.NoError(t, f.primary(t).CheckReadiness(context.Background()))

	notReady := f.primary(t, service.WithReadinessCheck(func(context.Context) error {
		return errors.New("database unavailable")
	}))
	assert.EqualError(t, notReady.CheckReadiness(context.Background()), "database unavailable")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	t.Run("secondary reports only itself", func(t *testing.T) {
		t.Parallel()
		resp, err := f.secondary(t).Status(ctx)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "secondary-1", resp.Node)
		require.NotNil(t, resp.Fields)
		assert.Equal(t, 1, resp.Fields.Registries)
		assert.Empty(t, resp.Secondaries)
	})

	t.Run("primary includes known secondaries", func(t *testing.T) {
		t.Parallel()
		resp, err := f.primary(t).Status(ctx)
		require.NoError(t, err)
		require.Len(t, resp.Secondaries, 1)
		assert.Equal(t, "secondary-1", resp.Secondaries[0].Node)
		assert.Equal(t, status.HealthUnknown, resp.Secondaries[0].Health)
		assert.Equal(t, status.HealthUnknown, resp.Health, "a silent secondary makes overall health unknown")
	})
}

func TestReportStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name    string
		status  *status.NodeStatus
		wantErr error
	}{
		{
			name:   "known secondary",
			status: &status.NodeStatus{Node: "secondary-1", Version: "v1.3.0", Health: status.HealthHealthy},
		},
		{
			name:    "unknown node",
			status:  &status.NodeStatus{Node: "intruder", Version: "v1.2.0"},
			wantErr: status.ErrUnknownNode,
		},
		{
			name:    "incompatible version",
			status:  &status.NodeStatus{Node: "secondary-1", Version: "v2.0.0"},
			wantErr: status.ErrIncompatibleVersion,
		},
		{
			name:    "empty payload",
			wantErr: service.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newFixture(t).primary(t)

			resp, err := svc.ReportStatus(ctx, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, "primary", resp.Node)

			overall, err := svc.Status(ctx)
			require.NoError(t, err)
			require.Len(t, overall.Secondaries, 1)
			assert.Equal(t, status.HealthHealthy, overall.Secondaries[0].Health)
			assert.Equal(t, status.HealthHealthy, overall.Health)
		})
	}
}

func TestPrimaryOnlyOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newFixture(t).secondary(t)

	_, err := svc.ReportStatus(ctx, &status.NodeStatus{Node: "secondary-2"})
	assert.ErrorIs(t, err, service.ErrNotPrimary)

	_, _, err = svc.ListEvents(ctx, service.ListEventsOptions{})
	assert.ErrorIs(t, err, service.ErrNotPrimary)

	_, err = svc.GetChecksum(ctx, projectKey)
	assert.ErrorIs(t, err, service.ErrNotPrimary)
}

func TestListEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	svc := f.primary(t)

	for range 3 {
		_, err := f.log.Append(ctx, eventlog.TypeRepositoryUpdated, projectKey, nil)
		require.NoError(t, err)
	}

	events, cursor, err := svc.ListEvents(ctx, service.ListEventsOptions{Consumer: "secondary-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, events[1].ID, cursor)

	saved, err := f.log.LoadCursor(ctx, "secondary-1")
	require.NoError(t, err)
	assert.Zero(t, saved, "nothing is acknowledged before the consumer moves past it")

	events, next, err := svc.ListEvents(ctx, service.ListEventsOptions{Consumer: "secondary-1", After: cursor})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Greater(t, next, cursor)

	saved, err = f.log.LoadCursor(ctx, "secondary-1")
	require.NoError(t, err)
	assert.Equal(t, cursor, saved)

	events, same, err := svc.ListEvents(ctx, service.ListEventsOptions{After: next})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, next, same)

	_, _, err = svc.ListEvents(ctx, service.ListEventsOptions{After: -1})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
}

func TestGetChecksum(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	svc := f.primary(t)

	_, err := svc.GetChecksum(ctx, projectKey)
	assert.ErrorIs(t, err, verification.ErrMissingOnPrimary)

	verifiedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.records.Put(ctx, verification.Record{Key: projectKey, Checksum: "abc123", VerifiedAt: verifiedAt}))

	rec, err := svc.GetChecksum(ctx, projectKey)
	require.NoError(t, err)
	assert.Equal(t, "abc123", rec.Checksum)
	assert.True(t, verifiedAt.Equal(rec.VerifiedAt))

	_, err = svc.GetChecksum(ctx, resource.Key{Type: "snippet", ID: "x"})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
}
