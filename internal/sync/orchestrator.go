package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-replication-server/internal/auth"
	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/lease"
	"github.com/stacklok/toolhive-replication-server/internal/otel"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/retry"
	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
	"github.com/stacklok/toolhive-replication-server/internal/transfer"
)

// Outcome is the terminal state of a sync attempt
type Outcome string

const (
	// OutcomeSucceeded means the local copy matches the upstream state
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the attempt failed and was recorded for retry
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means another worker holds the resource lease
	OutcomeSkipped Outcome = "skipped"
	// OutcomeReset means the registry exhausted its retries and was dropped
	OutcomeReset Outcome = "reset"
)

// Failure messages recorded on the registry
const (
	failureCancelled = "sync cancelled"
	failureLeaseLost = "sync lease lost"
)

// Result describes a finished sync attempt
type Result struct {
	Key      resource.Key
	Decision retry.Decision
	Outcome  Outcome
	// Failure is the error recorded for a failed attempt
	Failure error
}

// Orchestrator runs sync attempts for resources replicated from the primary
type Orchestrator struct {
	store      registry.Store
	leases     lease.Manager
	transfer   transfer.Transfer
	policy     *retry.Policy
	issuer     auth.TokenIssuer
	primaryURL string

	leaseTimeout   time.Duration
	resyncInterval time.Duration
	concurrency    int
	metrics        *telemetry.SyncMetrics
	tracer         trace.Tracer
	now            func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLeaseTimeout sets the timeout of the resource lease
func WithLeaseTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.leaseTimeout = d
		}
	}
}

// WithResyncInterval sets how long a successful sync stays fresh
func WithResyncInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.resyncInterval = d
	}
}

// WithConcurrency bounds the parallel syncs of a pass
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMetrics sets the sync metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer sets the tracer for sync spans
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an Orchestrator that replicates from primaryURL
func NewOrchestrator(
	store registry.Store,
	leases lease.Manager,
	t transfer.Transfer,
	policy *retry.Policy,
	issuer auth.TokenIssuer,
	primaryURL string,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		leases:       leases,
		transfer:     t,
		policy:       policy,
		issuer:       issuer,
		primaryURL:   primaryURL,
		leaseTimeout: lease.DefaultTimeout,
		concurrency:  4,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sync runs one sync attempt for key. Only configuration errors are returned;
// every other failure is recorded on the registry and reported in the Result.
func (o *Orchestrator) Sync(ctx context.Context, key resource.Key) (result Result, err error) {
	start := o.now()
	result.Key = key

	ctx, span := otel.StartSpan(ctx, o.tracer, "sync.Sync", trace.WithAttributes(otel.ResourceAttributes(key)...))
	defer func() {
		span.SetAttributes(
			otel.AttrDecision.String(result.Decision.String()),
			otel.AttrOutcome.String(string(result.Outcome)),
		)
		otel.RecordError(span, err)
		span.End()
		o.metrics.RecordSyncDuration(ctx, string(key.Type), string(result.Outcome), o.now().Sub(start))
	}()

	logger := logr.FromContextOrDiscard(ctx).WithValues("resource", key.String())

	reg, err := o.store.Get(ctx, key)
	switch {
	case errors.Is(err, registry.ErrRegistryNotFound):
		reg = registry.New(key)
	case err != nil:
		logger.Error(err, "Failed to load registry")
		result.Outcome, result.Failure = OutcomeFailed, err
		return result, nil
	}

	result.Decision = o.policy.Classify(reg.RetryCount, reg.ForceRedownload)
	if result.Decision == retry.DecisionReset {
		logger.Info("Retries exhausted, resetting registry", "retryCount", reg.RetryCount)
		if err := o.store.Delete(ctx, key); err != nil {
			logger.Error(err, "Failed to reset registry")
			result.Outcome, result.Failure = OutcomeFailed, err
			return result, nil
		}
		result.Outcome = OutcomeReset
		return result, nil
	}

	remoteURL, authHeader, err := o.credentials(ctx, key)
	if err != nil {
		result.Outcome, result.Failure = OutcomeFailed, err
		return result, err
	}

	l, held, err := o.leases.TryAcquire(ctx, key.LeaseKey(), o.leaseTimeout)
	if err != nil {
		logger.Error(err, "Failed to acquire lease")
		result.Outcome, result.Failure = OutcomeFailed, err
		return result, nil
	}
	if !held {
		logger.V(1).Info("Resource is busy, skipping sync")
		result.Outcome = OutcomeSkipped
		return result, nil
	}
	defer func() {
		if err := o.leases.Release(context.WithoutCancel(ctx), l); err != nil {
			logger.Error(err, "Failed to release lease")
		}
	}()

	// The registry may have changed while the lease was free
	reg, err = o.beginAttempt(ctx, key)
	if err != nil {
		logger.Error(err, "Failed to record sync attempt")
		result.Outcome, result.Failure = OutcomeFailed, err
		return result, nil
	}
	if reg.ForceRedownload {
		result.Decision = retry.DecisionRedownload
	}

	transferCtx, stop := o.keepAlive(ctx, l)
	defer stop()

	logger.Info("Starting sync", "decision", result.Decision.String(), "attempt", reg.RetryCount)
	if result.Decision == retry.DecisionRedownload {
		err = o.transfer.FetchFull(transferCtx, key, remoteURL, authHeader)
	} else {
		err = o.transfer.Fetch(transferCtx, key, remoteURL, authHeader)
	}

	return o.finish(ctx, transferCtx, logger, result, err)
}

// credentials resolves the clone URL and the bearer header for key
func (o *Orchestrator) credentials(ctx context.Context, key resource.Key) (string, string, error) {
	remoteURL, err := key.RemoteURL(o.primaryURL)
	if err != nil {
		return "", "", &Error{
			Err:      fmt.Errorf("%w: %v", config.ErrConfiguration, err),
			Message:  fmt.Sprintf("cannot resolve remote of %s: %v", key, err),
			Kind:     KindConfiguration,
			Resource: key,
		}
	}
	if o.issuer == nil {
		return "", "", &Error{
			Err:      fmt.Errorf("%w: no token issuer", config.ErrConfiguration),
			Message:  "no token issuer configured",
			Kind:     KindConfiguration,
			Resource: key,
		}
	}
	header, err := o.issuer.Issue(ctx, key.String())
	if err != nil {
		return "", "", &Error{
			Err:      fmt.Errorf("%w: %w", config.ErrConfiguration, err),
			Message:  fmt.Sprintf("failed to issue token for %s: %v", key, err),
			Kind:     KindConfiguration,
			Resource: key,
		}
	}
	return remoteURL, header, nil
}

// beginAttempt persists the attempt and its retry schedule before any transfer,
// so a crash leaves the registry retryable
func (o *Orchestrator) beginAttempt(ctx context.Context, key resource.Key) (*registry.Registry, error) {
	return o.store.Update(ctx, key, func(reg *registry.Registry) bool {
		now := o.now().UTC()
		reg.LastSyncedAt = &now
		reg.RetryCount++
		retryAt := o.policy.NextRetryAt(now, reg.RetryCount)
		reg.RetryAt = &retryAt
		reg.LastSyncFailure = ""
		// Events that arrive from here on request another sync
		reg.ResyncPending = false
		return true
	})
}

// keepAlive renews the lease while the transfer runs. The returned context
// is cancelled with lease.ErrLeaseLost when the lease moves to another holder.
func (o *Orchestrator) keepAlive(ctx context.Context, l *lease.Lease) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	interval := o.leaseTimeout / 3
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				renewed, err := o.leases.Renew(ctx, l)
				if err != nil {
					logr.FromContextOrDiscard(ctx).Error(err, "Failed to renew lease", "lease", l.Key)
					continue
				}
				if !renewed {
					cancel(lease.ErrLeaseLost)
					return
				}
			}
		}
	}()

	return ctx, func() {
		close(done)
		cancel(nil)
	}
}

// finish records the outcome of the transfer on the registry
func (o *Orchestrator) finish(
	ctx, transferCtx context.Context, logger logr.Logger, result Result, transferErr error,
) (Result, error) {
	// Outcomes are recorded even when the caller is shutting down
	persistCtx := context.WithoutCancel(ctx)

	switch {
	case transferErr == nil || errors.Is(transferErr, transfer.ErrUpstreamAbsent):
		missing := transferErr != nil
		if missing {
			logger.Info("Resource is absent on the primary, nothing to replicate")
		}
		_, err := o.store.Update(persistCtx, result.Key, func(reg *registry.Registry) bool {
			now := o.now().UTC()
			reg.LastSuccessfulSyncAt = &now
			reg.RetryCount = 0
			reg.RetryAt = nil
			reg.LastSyncFailure = ""
			reg.ForceRedownload = false
			reg.MissingOnPrimary = missing
			reg.ResetChecksum()
			return true
		})
		if err != nil {
			logger.Error(err, "Failed to record sync success")
			result.Outcome, result.Failure = OutcomeFailed, err
			return result, nil
		}
		logger.Info("Sync succeeded")
		result.Outcome = OutcomeSucceeded
		return result, nil

	case transferCtx.Err() != nil:
		message := failureCancelled
		if errors.Is(context.Cause(transferCtx), lease.ErrLeaseLost) {
			message = failureLeaseLost
		}
		logger.Info("Sync interrupted", "reason", message)
		o.recordFailure(persistCtx, logger, result.Key, message, false)
		result.Outcome, result.Failure = OutcomeFailed, fmt.Errorf("%s: %w", message, transferErr)
		return result, nil

	case errors.Is(transferErr, transfer.ErrStructuralCorruption):
		logger.Error(transferErr, "Local copy is corrupt, forcing redownload")
		o.recordFailure(persistCtx, logger, result.Key, transferErr.Error(), true)
		result.Outcome, result.Failure = OutcomeFailed, transferErr
		return result, nil

	case errors.Is(transferErr, config.ErrConfiguration):
		o.recordFailure(persistCtx, logger, result.Key, transferErr.Error(), false)
		result.Outcome, result.Failure = OutcomeFailed, transferErr
		return result, &Error{
			Err:      transferErr,
			Message:  fmt.Sprintf("sync of %s failed: %v", result.Key, transferErr),
			Kind:     KindConfiguration,
			Resource: result.Key,
		}

	default:
		logger.Error(transferErr, "Sync failed")
		o.recordFailure(persistCtx, logger, result.Key, transferErr.Error(), false)
		result.Outcome, result.Failure = OutcomeFailed, transferErr
		return result, nil
	}
}

// recordFailure keeps the retry schedule of the attempt and stores the failure
func (o *Orchestrator) recordFailure(
	ctx context.Context, logger logr.Logger, key resource.Key, message string, forceRedownload bool,
) {
	_, err := o.store.Update(ctx, key, func(reg *registry.Registry) bool {
		reg.LastSyncFailure = message
		if forceRedownload {
			reg.ForceRedownload = true
		}
		if reg.RetryAt == nil {
			retryAt := o.policy.NextRetryAt(o.now().UTC(), reg.RetryCount)
			reg.RetryAt = &retryAt
		}
		return true
	})
	if err != nil {
		logger.Error(err, "Failed to record sync failure")
	}
}

// Summary counts the outcomes of a sync pass
type Summary map[Outcome]int

// SyncDue syncs every registry that is due, with bounded parallelism.
// It stops early only on configuration errors or cancellation.
func (o *Orchestrator) SyncDue(ctx context.Context) (Summary, error) {
	regs, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registries: %w", err)
	}

	now := o.now()
	var due []resource.Key
	for _, reg := range regs {
		if reg.DueForSync(now, o.resyncInterval) {
			due = append(due, reg.Key)
		}
	}

	outcomes := make([]Outcome, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, key := range due {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := o.Sync(gctx, key)
			outcomes[i] = result.Outcome
			return err
		})
	}
	err = g.Wait()

	summary := Summary{}
	for _, outcome := range outcomes {
		if outcome != "" {
			summary[outcome]++
		}
	}
	return summary, err
}
