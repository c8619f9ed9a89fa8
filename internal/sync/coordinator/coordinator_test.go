package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	pkgsync "github.com/stacklok/toolhive-replication-server/internal/sync"
	"github.com/stacklok/toolhive-replication-server/internal/sync/coordinator/mocks"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

var (
	projectKey = resource.Key{Type: resource.TypeRepository, ID: "group/project"}
	wikiKey    = resource.Key{Type: resource.TypeWiki, ID: "group/project"}
)

func newTestConfig(role config.Role) *config.Config {
	return &config.Config{
		Node: config.NodeConfig{Name: "node-1", Role: role, PrimaryURL: "https://primary.example.com"},
		Sync: config.SyncConfig{PollInterval: "10ms"},
		Verification: config.VerificationConfig{
			Interval: "10ms",
		},
		Events: config.EventsConfig{PruneInterval: "10ms", PruneBatchSize: 50},
		Resources: []config.ResourceConfig{
			{Type: resource.TypeRepository, ID: "group/project"},
			{Type: resource.TypeWiki, ID: "group/project"},
		},
		Secondaries: []config.SecondaryConfig{{Name: "node-2", URL: "https://node-2.example.com"}},
	}
}

func newTestStore(t *testing.T) registry.Store {
	t.Helper()
	store, err := registry.NewFileStore(context.Background(), t.TempDir())
	require.NoError(t, err)
	return store
}

func newTestCoordinator(cfg *config.Config, store registry.Store, opts ...Option) *defaultCoordinator {
	c := New(cfg, store, opts...).(*defaultCoordinator)
	c.jitter = func(d time.Duration) time.Duration { return d }
	return c
}

// signal returns a channel closed on the first call of the returned func
func signal() (<-chan struct{}, func()) {
	ch := make(chan struct{})
	var once sync.Once
	return ch, func() {
		once.Do(func() { close(ch) })
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestCoordinator_New(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(config.RoleSecondary)
	coord := New(cfg, newTestStore(t))

	require.NotNil(t, coord)
	impl, ok := coord.(*defaultCoordinator)
	require.True(t, ok)
	assert.Equal(t, cfg, impl.config)
	assert.NotNil(t, impl.done)
}

func TestCoordinator_Stop_BeforeStart(t *testing.T) {
	t.Parallel()

	coord := New(newTestConfig(config.RoleSecondary), newTestStore(t))
	assert.NoError(t, coord.Stop())
}

func TestApplyJitter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base time.Duration
	}{
		{name: "minute", base: time.Minute},
		{name: "hour", base: time.Hour},
		{name: "tiny", base: 5 * time.Nanosecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spread := time.Duration(float64(tt.base) * jitterFraction)
			for range 100 {
				got := applyJitter(tt.base)
				assert.GreaterOrEqual(t, got, tt.base-spread)
				assert.LessOrEqual(t, got, tt.base+spread)
			}
		})
	}
}

func TestLoops(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	all := []Option{
		WithSyncer(mocks.NewMockSyncer(ctrl)),
		WithVerifier(mocks.NewMockVerifier(ctrl)),
		WithRecorder(mocks.NewMockRecorder(ctrl)),
		WithEventLog(mocks.NewMockEventLog(ctrl)),
		WithConsumer(mocks.NewMockEventConsumer(ctrl)),
		WithStatusReporter(mocks.NewMockStatusCollector(ctrl), mocks.NewMockStatusReporter(ctrl)),
	}
	disabled := false

	tests := []struct {
		name     string
		config   func() *config.Config
		expected []string
	}{
		{
			name:     "primary records and prunes",
			config:   func() *config.Config { return newTestConfig(config.RolePrimary) },
			expected: []string{"record", "prune"},
		},
		{
			name: "primary without secondaries does not prune",
			config: func() *config.Config {
				cfg := newTestConfig(config.RolePrimary)
				cfg.Secondaries = nil
				return cfg
			},
			expected: []string{"record"},
		},
		{
			name:     "secondary runs every replica loop",
			config:   func() *config.Config { return newTestConfig(config.RoleSecondary) },
			expected: []string{"events", "sync", "verify", "status"},
		},
		{
			name: "secondary with verification disabled",
			config: func() *config.Config {
				cfg := newTestConfig(config.RoleSecondary)
				cfg.Verification.Enabled = &disabled
				return cfg
			},
			expected: []string{"events", "sync", "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestCoordinator(tt.config(), nil, all...)

			var names []string
			for _, l := range c.loops() {
				names = append(names, l.name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestStart_SeedsAndRunsSecondaryLoops(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := newTestStore(t)

	synced, markSynced := signal()
	consumed, markConsumed := signal()
	pushed, markPushed := signal()

	syncer := mocks.NewMockSyncer(ctrl)
	syncer.EXPECT().SyncDue(gomock.Any()).DoAndReturn(func(context.Context) (pkgsync.Summary, error) {
		markSynced()
		return pkgsync.Summary{pkgsync.OutcomeSucceeded: 2}, nil
	}).MinTimes(1)

	consumer := mocks.NewMockEventConsumer(ctrl)
	consumer.EXPECT().Run(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
		markConsumed()
		return 0, nil
	}).MinTimes(1)

	verifier := mocks.NewMockVerifier(ctrl)
	verifier.EXPECT().VerifyDue(gomock.Any()).Return(verification.Summary{}, nil).AnyTimes()

	nodeStatus := &status.NodeStatus{Node: "node-1", Health: status.HealthHealthy}
	collector := mocks.NewMockStatusCollector(ctrl)
	collector.EXPECT().Collect(gomock.Any()).Return(nodeStatus, nil).MinTimes(1)
	reporter := mocks.NewMockStatusReporter(ctrl)
	reporter.EXPECT().PushStatus(gomock.Any(), nodeStatus).DoAndReturn(
		func(context.Context, *status.NodeStatus) (*status.Response, error) {
			markPushed()
			return &status.Response{Success: true}, nil
		}).MinTimes(1)

	c := newTestCoordinator(newTestConfig(config.RoleSecondary), store,
		WithSyncer(syncer),
		WithConsumer(consumer),
		WithVerifier(verifier),
		WithStatusReporter(collector, reporter),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	waitFor(t, synced, "sync pass")
	waitFor(t, consumed, "event consumption")
	waitFor(t, pushed, "status push")

	regs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 2)

	require.NoError(t, c.Stop())
	assert.NoError(t, <-errCh)
}

func TestStart_ConfigurationErrorStopsCoordinator(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)

	syncer := mocks.NewMockSyncer(ctrl)
	syncer.EXPECT().SyncDue(gomock.Any()).Return(pkgsync.Summary{},
		fmt.Errorf("no primary URL: %w", config.ErrConfiguration))

	consumer := mocks.NewMockEventConsumer(ctrl)
	consumer.EXPECT().Run(gomock.Any()).Return(0, nil).AnyTimes()

	c := newTestCoordinator(newTestConfig(config.RoleSecondary), newTestStore(t),
		WithSyncer(syncer),
		WithConsumer(consumer),
	)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestStart_TransientErrorsKeepLooping(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	recovered, markRecovered := signal()

	syncer := mocks.NewMockSyncer(ctrl)
	gomock.InOrder(
		syncer.EXPECT().SyncDue(gomock.Any()).Return(pkgsync.Summary{}, errors.New("database unavailable")),
		syncer.EXPECT().SyncDue(gomock.Any()).DoAndReturn(func(context.Context) (pkgsync.Summary, error) {
			markRecovered()
			return pkgsync.Summary{}, nil
		}).MinTimes(1),
	)

	c := newTestCoordinator(newTestConfig(config.RoleSecondary), newTestStore(t), WithSyncer(syncer))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	waitFor(t, recovered, "second sync pass")
	require.NoError(t, c.Stop())
	assert.NoError(t, <-errCh)
}

func TestStart_ReplicationDisabledIsIdle(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	disabled := false
	cfg := newTestConfig(config.RoleSecondary)
	cfg.Node.ReplicationEnabled = &disabled
	store := newTestStore(t)

	// No calls are expected on the syncer
	c := newTestCoordinator(cfg, store, WithSyncer(mocks.NewMockSyncer(ctrl)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		regs, err := store.List(context.Background())
		return err == nil && len(regs) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestRecordChanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		change   verification.Change
		expected eventlog.Type
	}{
		{name: "created", change: verification.ChangeCreated, expected: eventlog.TypeRepositoryCreated},
		{name: "updated", change: verification.ChangeUpdated, expected: eventlog.TypeRepositoryUpdated},
		{name: "deleted", change: verification.ChangeDeleted, expected: eventlog.TypeRepositoryDeleted},
		{name: "unchanged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			ctrl := gomock.NewController(t)

			store := newTestStore(t)
			require.NoError(t, registry.Seed(ctx, store, []resource.Key{projectKey}))

			recorder := mocks.NewMockRecorder(ctrl)
			recorder.EXPECT().Record(gomock.Any(), projectKey).Return(tt.change, nil)

			events := mocks.NewMockEventLog(ctrl)
			if tt.expected != "" {
				events.EXPECT().Append(gomock.Any(), tt.expected, projectKey, nil).Return(int64(7), nil)
			}

			c := newTestCoordinator(newTestConfig(config.RolePrimary), store,
				WithRecorder(recorder), WithEventLog(events))
			assert.NoError(t, c.recordChanges(ctx))
		})
	}
}

func TestRecordChanges_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)

	store := newTestStore(t)
	require.NoError(t, registry.Seed(ctx, store, []resource.Key{projectKey, wikiKey}))

	recorder := mocks.NewMockRecorder(ctrl)
	recorder.EXPECT().Record(gomock.Any(), projectKey).Return(verification.ChangeNone, errors.New("corrupt pack"))
	recorder.EXPECT().Record(gomock.Any(), wikiKey).Return(verification.ChangeUpdated, nil)

	events := mocks.NewMockEventLog(ctrl)
	events.EXPECT().Append(gomock.Any(), eventlog.TypeRepositoryUpdated, wikiKey, nil).Return(int64(1), nil)

	c := newTestCoordinator(newTestConfig(config.RolePrimary), store,
		WithRecorder(recorder), WithEventLog(events))

	err := c.recordChanges(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt pack")
	assert.Contains(t, err.Error(), projectKey.String())
}

func TestPruneEvents(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventLog(ctrl)
	events.EXPECT().Prune(gomock.Any(), eventlog.PruneOptions{BatchSize: 50}).Return(int64(3), nil)

	c := newTestCoordinator(newTestConfig(config.RolePrimary), nil, WithEventLog(events))
	assert.NoError(t, c.pruneEvents(context.Background()))
}

func TestPushStatus_CollectFailureSkipsPush(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	collector := mocks.NewMockStatusCollector(ctrl)
	collector.EXPECT().Collect(gomock.Any()).Return(nil, errors.New("store unavailable"))
	reporter := mocks.NewMockStatusReporter(ctrl)

	c := newTestCoordinator(newTestConfig(config.RoleSecondary), nil, WithStatusReporter(collector, reporter))
	assert.EqualError(t, c.pushStatus(context.Background()), "store unavailable")
}
