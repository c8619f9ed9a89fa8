package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-replication-server/internal/api"
	"github.com/stacklok/toolhive-replication-server/internal/app/storage"
	"github.com/stacklok/toolhive-replication-server/internal/auth"
	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/httpclient"
	"github.com/stacklok/toolhive-replication-server/internal/lease"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/retry"
	"github.com/stacklok/toolhive-replication-server/internal/service"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	pkgsync "github.com/stacklok/toolhive-replication-server/internal/sync"
	"github.com/stacklok/toolhive-replication-server/internal/sync/coordinator"
	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
	"github.com/stacklok/toolhive-replication-server/internal/transfer"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
	"github.com/stacklok/toolhive-replication-server/internal/versions"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 60 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// tracerName names the spans of sync and verification passes
	tracerName = "github.com/stacklok/toolhive-replication-server/replication"

	// authRealm is announced in WWW-Authenticate challenges
	authRealm = "thv-replication"
)

// ReplicationAppOptions is a function that configures the replication app builder
type ReplicationAppOptions func(*replicationAppConfig) error

// replicationAppConfig collects everything needed to build a ReplicationApp.
// Component overrides exist for tests.
type replicationAppConfig struct {
	config  *config.Config
	version string

	storageFactory storage.Factory

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...ReplicationAppOptions) (*replicationAppConfig, error) {
	cfg := &replicationAppConfig{
		version:        versions.Version,
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewReplicationApp builds every component of a node for its configured role
func NewReplicationApp(ctx context.Context, opts ...ReplicationAppOptions) (*ReplicationApp, error) {
	b, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if b.storageFactory == nil {
		b.storageFactory, err = storage.NewStorageFactory(ctx, b.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			b.storageFactory.Cleanup()
		}
	}()

	components, err := buildComponents(ctx, b)
	if err != nil {
		return nil, err
	}

	httpServer, err := buildHTTPServer(ctx, b, components.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &ReplicationApp{
		config:     b.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: func() {
			cancel()
			b.storageFactory.Cleanup()
		},
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithVersion sets the version reported in node statuses
func WithVersion(version string) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		cfg.version = version
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory injects the storage factory
func WithStorageFactory(f storage.Factory) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithMeterProvider sets the meter provider of sync, event and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the tracer provider of sync, verification and HTTP spans
func WithTracerProvider(tp trace.TracerProvider) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) ReplicationAppOptions {
	return func(cfg *replicationAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// metricsSet groups the instruments shared by components
type metricsSet struct {
	sync         *telemetry.SyncMetrics
	verification *telemetry.VerificationMetrics
	events       *telemetry.EventMetrics
}

func buildMetrics(mp metric.MeterProvider) (*metricsSet, error) {
	m := &metricsSet{}
	if mp == nil {
		return m, nil
	}

	var err error
	if m.sync, err = telemetry.NewSyncMetrics(mp); err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	if m.verification, err = telemetry.NewVerificationMetrics(mp); err != nil {
		return nil, fmt.Errorf("failed to create verification metrics: %w", err)
	}
	if m.events, err = telemetry.NewEventMetrics(mp); err != nil {
		return nil, fmt.Errorf("failed to create event metrics: %w", err)
	}
	slog.Info("Replication metrics enabled")
	return m, nil
}

// buildComponents creates the service and coordinator for the node role
func buildComponents(ctx context.Context, b *replicationAppConfig) (*AppComponents, error) {
	cfg := b.config
	slog.Info("Initializing replication components", "node", cfg.Node.Name, "role", cfg.Node.Role)

	store, err := b.storageFactory.CreateRegistryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry store: %w", err)
	}

	metrics, err := buildMetrics(b.meterProvider)
	if err != nil {
		return nil, err
	}

	var tracer trace.Tracer
	if b.tracerProvider != nil {
		tracer = b.tracerProvider.Tracer(tracerName)
	}

	var (
		svc   service.ReplicationService
		coord coordinator.Coordinator
	)
	if cfg.IsPrimary() {
		svc, coord, err = buildPrimary(ctx, b, store, metrics)
	} else {
		svc, coord, err = buildSecondary(ctx, b, store, metrics, tracer)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Replication components initialized")
	return &AppComponents{
		Coordinator: coord,
		Service:     svc,
		Store:       store,
	}, nil
}

// buildPrimary wires checksum recording, the event log and status aggregation
func buildPrimary(
	ctx context.Context,
	b *replicationAppConfig,
	store registry.Store,
	metrics *metricsSet,
) (service.ReplicationService, coordinator.Coordinator, error) {
	cfg := b.config
	repoRoot := cfg.GetRepositoriesDir()

	records, err := b.storageFactory.CreateRecordStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checksum record store: %w", err)
	}

	events, err := b.storageFactory.CreateEventStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create event store: %w", err)
	}
	eventLog := eventlog.NewLog(events,
		eventlog.WithActiveCheck(func(context.Context) bool { return cfg.EventLogActive() }),
		eventlog.WithMetrics(metrics.events),
	)

	persistence, err := b.storageFactory.CreateStatusPersistence(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create status persistence: %w", err)
	}
	secondaries := make([]string, 0, len(cfg.Secondaries))
	for _, s := range cfg.Secondaries {
		secondaries = append(secondaries, s.Name)
	}
	aggregator, err := status.NewAggregator(ctx, persistence, secondaries, b.version)
	if err != nil {
		return nil, nil, err
	}

	collector := status.NewCollector(cfg.Node.Name, string(config.RolePrimary), b.version, store,
		status.WithCollectorMetrics(metrics.sync))

	svc, err := service.New(collector,
		service.WithAggregator(aggregator),
		service.WithEventSource(eventLog),
		service.WithChecksums(verification.NewLocalChecksums(records, repoRoot)),
		service.WithReadinessCheck(b.storageFactory.Ping),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create replication service: %w", err)
	}

	coord := coordinator.New(cfg, store,
		coordinator.WithRecorder(verification.NewRecorder(records, verification.NewGitCalculator(), repoRoot)),
		coordinator.WithEventLog(eventLog),
	)
	return svc, coord, nil
}

// buildSecondary wires the sync orchestrator, the verifier, the event
// consumer and status pushes to the primary
func buildSecondary(
	ctx context.Context,
	b *replicationAppConfig,
	store registry.Store,
	metrics *metricsSet,
	tracer trace.Tracer,
) (service.ReplicationService, coordinator.Coordinator, error) {
	cfg := b.config
	repoRoot := cfg.GetRepositoriesDir()

	issuer, client, err := newPrimaryClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	leases, err := b.storageFactory.CreateLeaseManager(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create lease manager: %w", err)
	}
	cursors, err := b.storageFactory.CreateCursorStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cursor store: %w", err)
	}

	policy := newRetryPolicy(cfg)

	orchestrator := pkgsync.NewOrchestrator(store, leases, transfer.NewGitTransfer(repoRoot), policy, issuer,
		cfg.Node.PrimaryURL,
		pkgsync.WithLeaseTimeout(cfg.GetLeaseTimeout()),
		pkgsync.WithResyncInterval(cfg.GetResyncInterval()),
		pkgsync.WithConcurrency(cfg.GetSyncConcurrency()),
		pkgsync.WithMetrics(metrics.sync),
		pkgsync.WithTracer(tracer),
	)

	verifier := newVerifier(cfg, store, leases, client, policy, metrics.verification, tracer)

	consumer := eventlog.NewConsumer(cfg.Node.Name, client, cursors,
		eventlog.WithHandlers(eventlog.ReplicaHandlers(store, repoRoot)),
		eventlog.WithBatchSize(cfg.GetEventBatchSize()),
		eventlog.WithConsumerMetrics(metrics.events),
	)

	collector := status.NewCollector(cfg.Node.Name, string(config.RoleSecondary), b.version, store,
		status.WithEventCursor(cursors, cfg.Node.Name),
		status.WithCollectorMetrics(metrics.sync),
	)

	svc, err := service.New(collector, service.WithReadinessCheck(b.storageFactory.Ping))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create replication service: %w", err)
	}

	coord := coordinator.New(cfg, store,
		coordinator.WithSyncer(orchestrator),
		coordinator.WithVerifier(verifier),
		coordinator.WithConsumer(consumer),
		coordinator.WithStatusReporter(collector, client),
	)
	return svc, coord, nil
}

// newPrimaryClient creates the token issuer of this node and the client
// it uses to reach the primary
func newPrimaryClient(cfg *config.Config) (*auth.JWTIssuer, *httpclient.Client, error) {
	key, err := cfg.GetSigningKey()
	if err != nil {
		return nil, nil, err
	}
	issuer, err := auth.NewJWTIssuer(key, cfg.Node.Name, auth.WithTTL(cfg.GetTokenTTL()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	client, err := httpclient.NewClient(cfg.Node.PrimaryURL, cfg.Node.Name, issuer,
		httpclient.WithTimeout(cfg.GetStatusTimeout()))
	if err != nil {
		return nil, nil, err
	}
	return issuer, client, nil
}

func newRetryPolicy(cfg *config.Config) *retry.Policy {
	return retry.NewPolicy(
		retry.WithRetryBeforeRedownload(cfg.GetRetryBeforeRedownload()),
		retry.WithRetryLimit(cfg.GetRetryLimit()),
		retry.WithBaseDelay(cfg.GetBaseRetryDelay()),
	)
}

func newVerifier(
	cfg *config.Config,
	store registry.Store,
	leases lease.Manager,
	primary verification.PrimaryChecksums,
	policy *retry.Policy,
	metrics *telemetry.VerificationMetrics,
	tracer trace.Tracer,
) *verification.Verifier {
	return verification.NewVerifier(store, leases, primary, verification.NewGitCalculator(), policy,
		cfg.GetRepositoriesDir(),
		verification.WithLeaseTimeout(cfg.GetLeaseTimeout()),
		verification.WithReverificationPeriod(cfg.GetReverificationPeriod()),
		verification.WithConcurrency(cfg.GetVerificationConcurrency()),
		verification.WithMetrics(metrics),
		verification.WithTracer(tracer),
	)
}

// buildHTTPServer builds the HTTP server with router and middleware.
// Every node verifies bearer tokens signed with the shared key.
func buildHTTPServer(
	_ context.Context,
	b *replicationAppConfig,
	svc service.ReplicationService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	middlewares := b.middlewares
	if middlewares == nil {
		middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Instrumentation goes first so requests rejected by auth are measured too
	instrumentation, err := telemetry.NewHTTPInstrumentation(b.tracerProvider, b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP instrumentation: %w", err)
	}
	if instrumentation != nil {
		middlewares = append([]func(http.Handler) http.Handler{instrumentation.Middleware}, middlewares...)
	}

	key, err := b.config.GetSigningKey()
	if err != nil {
		return nil, err
	}
	authMw := auth.WrapWithPublicPaths(
		auth.Middleware(auth.NewTokenVerifier(key, time.Now), authRealm),
		auth.DefaultPublicPaths,
	)
	middlewares = append(middlewares, authMw)

	serverOpts := []api.ServerOption{api.WithMiddlewares(middlewares...)}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	router := api.NewServer(svc, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
