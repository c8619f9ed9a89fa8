package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/lease"
	"github.com/stacklok/toolhive-replication-server/internal/otel"
	"github.com/stacklok/toolhive-replication-server/internal/registry"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/retry"
	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
)

// Outcome is the terminal state of a single verification
type Outcome string

const (
	// OutcomeSkipped means the registry is untracked or already scheduled for a resync
	OutcomeSkipped Outcome = "skipped"
	// OutcomeNotReady means the primary has not recorded a checksum yet
	OutcomeNotReady Outcome = "not_ready"
	// OutcomeContended means another worker holds the resource lease
	OutcomeContended Outcome = "contended"
	// OutcomeMatch means the local checksum equals the primary one
	OutcomeMatch Outcome = "match"
	// OutcomeMismatch means the local copy diverged from the primary
	OutcomeMismatch Outcome = "mismatch"
	// OutcomeError means a checksum could not be obtained
	OutcomeError Outcome = "error"
	// OutcomeMissingOnPrimary means the primary no longer has the resource
	OutcomeMissingOnPrimary Outcome = "missing_on_primary"
)

// Verifier compares local checksums against the primary and records the result
type Verifier struct {
	store        registry.Store
	leases       lease.Manager
	primary      PrimaryChecksums
	calc         Calculator
	policy       *retry.Policy
	repoRoot     string
	leaseTimeout time.Duration
	reverify     time.Duration
	concurrency  int
	metrics      *telemetry.VerificationMetrics
	tracer       trace.Tracer
	now          func() time.Time
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithLeaseTimeout sets the timeout of the resource lease
func WithLeaseTimeout(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.leaseTimeout = d
	}
}

// WithReverificationPeriod sets how long a match stays valid
func WithReverificationPeriod(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.reverify = d
	}
}

// WithConcurrency bounds the parallel verifications of a pass
func WithConcurrency(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// WithMetrics sets the verification metrics
func WithMetrics(m *telemetry.VerificationMetrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// WithTracer sets the tracer for verification spans
func WithTracer(t trace.Tracer) VerifierOption {
	return func(v *Verifier) {
		v.tracer = t
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a Verifier for copies stored below repoRoot
func NewVerifier(
	store registry.Store,
	leases lease.Manager,
	primary PrimaryChecksums,
	calc Calculator,
	policy *retry.Policy,
	repoRoot string,
	opts ...VerifierOption,
) *Verifier {
	v := &Verifier{
		store:        store,
		leases:       leases,
		primary:      primary,
		calc:         calc,
		policy:       policy,
		repoRoot:     repoRoot,
		leaseTimeout: lease.DefaultTimeout,
		reverify:     24 * time.Hour,
		concurrency:  4,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a single resource. Only configuration errors are returned;
// every other failure is recorded on the registry.
func (v *Verifier) Verify(ctx context.Context, key resource.Key) (outcome Outcome, err error) {
	ctx, span := otel.StartSpan(ctx, v.tracer, "verification.Verify",
		trace.WithAttributes(otel.ResourceAttributes(key)...))
	defer func() {
		span.SetAttributes(otel.AttrOutcome.String(string(outcome)))
		otel.RecordError(span, err)
		span.End()
		v.metrics.RecordOutcome(ctx, string(key.Type), string(outcome))
	}()

	logger := logr.FromContextOrDiscard(ctx).WithValues("resource", key.String())

	reg, err := v.store.Get(ctx, key)
	if errors.Is(err, registry.ErrRegistryNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		logger.Error(err, "Failed to load registry")
		return OutcomeError, nil
	}
	if skipVerification(reg) {
		return OutcomeSkipped, nil
	}

	l, held, err := v.leases.TryAcquire(ctx, key.LeaseKey(), v.leaseTimeout)
	if err != nil {
		logger.Error(err, "Failed to acquire lease")
		return OutcomeError, nil
	}
	if !held {
		logger.V(1).Info("Resource is busy, skipping verification")
		return OutcomeContended, nil
	}
	defer func() {
		if err := v.leases.Release(context.WithoutCancel(ctx), l); err != nil {
			logger.Error(err, "Failed to release lease")
		}
	}()

	// A sync may have finished between the first read and the lease
	reg, err = v.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, registry.ErrRegistryNotFound) {
			return OutcomeSkipped, nil
		}
		logger.Error(err, "Failed to reload registry")
		return OutcomeError, nil
	}
	if skipVerification(reg) {
		return OutcomeSkipped, nil
	}

	expected, err := v.primary.PrimaryChecksum(ctx, key)
	switch {
	case errors.Is(err, config.ErrConfiguration):
		return OutcomeError, err
	case errors.Is(err, ErrNotRecorded):
		logger.V(1).Info("Primary has not recorded a checksum yet")
		return OutcomeNotReady, nil
	case errors.Is(err, ErrMissingOnPrimary):
		logger.Info("Resource is missing on primary")
		v.persist(ctx, key, func(reg *registry.Registry) {
			reg.MissingOnPrimary = true
			reg.ChecksumMismatch = false
			reg.VerificationRetryAt = nil
		})
		return OutcomeMissingOnPrimary, nil
	case err != nil:
		logger.Error(err, "Failed to look up primary checksum")
		v.recordFailure(ctx, key, fmt.Sprintf("primary checksum lookup failed: %v", err), false, "")
		return OutcomeError, nil
	}

	actual, err := v.calc.Checksum(ctx, key.DiskPath(v.repoRoot))
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeError, nil
		}
		logger.Error(err, "Failed to compute local checksum")
		v.recordFailure(ctx, key, fmt.Sprintf("checksum calculation failed: %v", err), true, "")
		return OutcomeError, nil
	}

	if actual != expected {
		logger.Info("Checksum mismatch", "expected", expected, "actual", actual)
		v.recordFailure(ctx, key, fmt.Sprintf("checksum mismatch: primary %s, local %s", expected, actual), true, actual)
		return OutcomeMismatch, nil
	}

	v.persist(ctx, key, func(reg *registry.Registry) {
		now := v.now().UTC()
		reg.VerificationChecksum = actual
		reg.ChecksumMismatch = false
		reg.LastVerificationFailure = ""
		reg.VerificationRetryCount = 0
		reg.VerificationRetryAt = nil
		reg.LastVerifiedAt = &now
		reg.MissingOnPrimary = false
	})
	return OutcomeMatch, nil
}

// recordFailure persists a failed verification and schedules the next one.
// Local failures also request a resync since the copy cannot be trusted.
func (v *Verifier) recordFailure(ctx context.Context, key resource.Key, message string, resync bool, actual string) {
	v.persist(ctx, key, func(reg *registry.Registry) {
		now := v.now().UTC()
		reg.LastVerificationFailure = message
		reg.ChecksumMismatch = actual != ""
		if actual != "" {
			reg.VerificationChecksum = actual
		}
		reg.VerificationRetryCount++
		retryAt := v.policy.NextRetryAt(now, reg.VerificationRetryCount)
		reg.VerificationRetryAt = &retryAt
		reg.LastVerifiedAt = &now
		if resync {
			reg.ResyncPending = true
		}
	})
}

// persist applies mutate to a tracked registry. Store failures are logged
// because verification results are advisory and the next pass retries.
func (v *Verifier) persist(ctx context.Context, key resource.Key, mutate func(reg *registry.Registry)) {
	_, err := v.store.Update(context.WithoutCancel(ctx), key, func(reg *registry.Registry) bool {
		mutate(reg)
		return true
	})
	if err != nil {
		logr.FromContextOrDiscard(ctx).Error(err, "Failed to persist verification result", "resource", key.String())
	}
}

func skipVerification(reg *registry.Registry) bool {
	return reg.ForceRedownload || reg.ResyncPending || reg.LastSuccessfulSyncAt == nil
}

// Summary counts the outcomes of a verification pass
type Summary map[Outcome]int

// VerifyDue verifies every registry that is due, with bounded parallelism.
// It stops early only on configuration errors or cancellation.
func (v *Verifier) VerifyDue(ctx context.Context) (Summary, error) {
	regs, err := v.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registries: %w", err)
	}

	now := v.now()
	var mu sync.Mutex
	summary := Summary{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for _, reg := range regs {
		if !reg.DueForVerification(now, v.reverify) {
			continue
		}
		key := reg.Key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := v.Verify(gctx, key)
			mu.Lock()
			summary[outcome]++
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}
