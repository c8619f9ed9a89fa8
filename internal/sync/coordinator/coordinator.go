package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	pkgsync "github.com/stacklok/toolhive-replication-server/internal/sync"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

// jitterFraction is the maximum relative offset applied to every loop interval
const jitterFraction = 0.1

// Coordinator manages the background replication loops of a node
type Coordinator interface {
	// Start seeds configured resources and runs every loop of the node role.
	// Blocks until context is cancelled or a configuration error stops the node.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator and all loops
	Stop() error
}

// Syncer runs a sync pass over due registries
//
//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/sync/coordinator Syncer,Verifier,Recorder,EventLog,EventConsumer,StatusCollector,StatusReporter
type Syncer interface {
	SyncDue(ctx context.Context) (pkgsync.Summary, error)
}

// Verifier runs a verification pass over due registries
type Verifier interface {
	VerifyDue(ctx context.Context) (verification.Summary, error)
}

// Recorder records the primary checksum of a resource
type Recorder interface {
	Record(ctx context.Context, key resource.Key) (verification.Change, error)
}

// EventLog appends and prunes change events on the primary
type EventLog interface {
	Append(ctx context.Context, t eventlog.Type, key resource.Key, payload any) (int64, error)
	Prune(ctx context.Context, opts eventlog.PruneOptions) (int64, error)
}

// EventConsumer applies events from the primary on a secondary
type EventConsumer interface {
	Run(ctx context.Context) (int, error)
}

// StatusCollector builds the status of this node
type StatusCollector interface {
	Collect(ctx context.Context) (*status.NodeStatus, error)
}

// StatusReporter pushes the status of this node to the primary
type StatusReporter interface {
	PushStatus(ctx context.Context, st *status.NodeStatus) (*status.Response, error)
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	config *config.Config
	store  registry.Store

	syncer    Syncer
	verifier  Verifier
	recorder  Recorder
	events    EventLog
	consumer  EventConsumer
	collector StatusCollector
	reporter  StatusReporter

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}

	jitter func(time.Duration) time.Duration
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncer runs the sync loop on a secondary
func WithSyncer(s Syncer) Option {
	return func(c *defaultCoordinator) {
		c.syncer = s
	}
}

// WithVerifier runs the verification loop on a secondary
func WithVerifier(v Verifier) Option {
	return func(c *defaultCoordinator) {
		c.verifier = v
	}
}

// WithRecorder runs the checksum recording loop on the primary
func WithRecorder(r Recorder) Option {
	return func(c *defaultCoordinator) {
		c.recorder = r
	}
}

// WithEventLog appends change events for recorded changes and prunes the log
func WithEventLog(l EventLog) Option {
	return func(c *defaultCoordinator) {
		c.events = l
	}
}

// WithConsumer runs the event consumer loop on a secondary
func WithConsumer(consumer EventConsumer) Option {
	return func(c *defaultCoordinator) {
		c.consumer = consumer
	}
}

// WithStatusReporter pushes the collected status to the primary
func WithStatusReporter(collector StatusCollector, reporter StatusReporter) Option {
	return func(c *defaultCoordinator) {
		c.collector = collector
		c.reporter = reporter
	}
}

// New creates a new coordinator with injected dependencies
func New(cfg *config.Config, store registry.Store, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		config: cfg,
		store:  store,
		done:   make(chan struct{}),
		jitter: applyJitter,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// applyJitter returns base with a random offset of up to ±10%
// so nodes sharing a database do not poll in lockstep
func applyJitter(base time.Duration) time.Duration {
	spread := int64(float64(base) * jitterFraction)
	if spread <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	return base + time.Duration(rand.Int64N(2*spread)-spread)
}

// Start begins background replication for the node
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting replication coordinator",
		"node", c.config.Node.Name,
		"role", c.config.Node.Role,
		"resource_count", len(c.config.Resources))

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Replication coordinator shutting down")
	}()

	keys := make([]resource.Key, 0, len(c.config.Resources))
	for _, res := range c.config.Resources {
		keys = append(keys, res.Key())
	}
	if err := registry.Seed(coordCtx, c.store, keys); err != nil {
		return fmt.Errorf("failed to seed registries: %w", err)
	}

	if !c.config.ReplicationEnabled() {
		slog.Info("Replication is disabled, coordinator is idle")
		<-coordCtx.Done()
		return nil
	}

	g, gctx := errgroup.WithContext(coordCtx)
	for _, l := range c.loops() {
		slog.Info("Starting loop", "loop", l.name, "interval", l.interval)
		g.Go(func() error {
			return c.runLoop(gctx, l)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping replication coordinator")
		c.cancelFunc()
		// Wait for coordinator to finish
		<-c.done
	}
	return nil
}

// loop is a task that runs on a fixed interval
type loop struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// loops returns the loops of the node role
func (c *defaultCoordinator) loops() []loop {
	var loops []loop
	cfg := c.config

	if cfg.IsPrimary() {
		if c.recorder != nil {
			loops = append(loops, loop{name: "record", interval: cfg.GetPollInterval(), run: c.recordChanges})
		}
		if c.events != nil && cfg.EventLogActive() {
			loops = append(loops, loop{name: "prune", interval: cfg.GetPruneInterval(), run: c.pruneEvents})
		}
		return loops
	}

	if c.consumer != nil {
		loops = append(loops, loop{name: "events", interval: cfg.GetPollInterval(), run: c.consumeEvents})
	}
	if c.syncer != nil {
		loops = append(loops, loop{name: "sync", interval: cfg.GetPollInterval(), run: c.syncPass})
	}
	if c.verifier != nil && cfg.VerificationEnabled() {
		loops = append(loops, loop{name: "verify", interval: cfg.GetVerificationInterval(), run: c.verifyPass})
	}
	if c.collector != nil && c.reporter != nil {
		loops = append(loops, loop{name: "status", interval: cfg.GetStatusPushInterval(), run: c.pushStatus})
	}
	return loops
}

// runLoop runs l immediately and then on its interval until ctx is cancelled.
// Configuration errors stop the loop and the coordinator; others are logged.
func (c *defaultCoordinator) runLoop(ctx context.Context, l loop) error {
	ticker := time.NewTicker(c.jitter(l.interval))
	defer ticker.Stop()

	for {
		if err := l.run(ctx); err != nil {
			if errors.Is(err, config.ErrConfiguration) {
				slog.Error("Loop stopped by configuration error", "loop", l.name, "error", err)
				return err
			}
			if ctx.Err() == nil {
				slog.Warn("Loop iteration failed", "loop", l.name, "error", err)
			}
		}

		select {
		case <-ticker.C:
			// Recalculate interval with new jitter for next iteration
			ticker.Reset(c.jitter(l.interval))
		case <-ctx.Done():
			slog.Debug("Loop stopping", "loop", l.name)
			return ctx.Err()
		}
	}
}
