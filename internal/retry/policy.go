// Package retry decides how a failing resource is retried and when.
package retry

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultRetryBeforeRedownload is the highest retry count that still uses an incremental fetch
	DefaultRetryBeforeRedownload = 5

	// DefaultRetryLimit is the highest retry count that still triggers a redownload
	DefaultRetryLimit = 8

	// DefaultBaseDelay is the delay unit the backoff curve is built from
	DefaultBaseDelay = time.Minute

	// MaxDelay bounds the exponential part of the backoff curve
	MaxDelay = 7 * 24 * time.Hour
)

// Decision is the strategy chosen for the next sync attempt.
type Decision int

const (
	// DecisionRetry re-runs an incremental fetch
	DecisionRetry Decision = iota
	// DecisionRedownload discards the local copy and fetches a fresh one
	DecisionRedownload
	// DecisionReset drops tracking state so a future trigger starts over
	DecisionReset
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionRedownload:
		return "redownload"
	case DecisionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Policy classifies retry counters and computes retry schedules.
// A Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	retryBeforeRedownload int
	retryLimit            int
	baseDelay             time.Duration
	// jitter is a fraction in [0, 1) of baseDelay added to every delay.
	// It is fixed per Policy so the curve stays monotonic.
	jitter float64
}

// Option configures a Policy
type Option func(*Policy)

// WithRetryBeforeRedownload sets the retry count above which a redownload is used
func WithRetryBeforeRedownload(n int) Option {
	return func(p *Policy) {
		if n >= 0 {
			p.retryBeforeRedownload = n
		}
	}
}

// WithRetryLimit sets the retry count above which tracking state is reset
func WithRetryLimit(n int) Option {
	return func(p *Policy) {
		if n >= 0 {
			p.retryLimit = n
		}
	}
}

// WithBaseDelay sets the delay unit of the backoff curve
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.baseDelay = d
		}
	}
}

// WithJitter fixes the jitter fraction. Values outside [0, 1) are ignored.
func WithJitter(fraction float64) Option {
	return func(p *Policy) {
		if fraction >= 0 && fraction < 1 {
			p.jitter = fraction
		}
	}
}

// NewPolicy creates a Policy with defaults and a random jitter fraction.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		retryBeforeRedownload: DefaultRetryBeforeRedownload,
		retryLimit:            DefaultRetryLimit,
		baseDelay:             DefaultBaseDelay,
		//nolint:gosec // G404: jitter only spreads retries between nodes
		jitter: rand.Float64(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retryLimit < p.retryBeforeRedownload {
		p.retryLimit = p.retryBeforeRedownload
	}
	return p
}

// BaseDelay returns the delay unit of the curve.
func (p *Policy) BaseDelay() time.Duration {
	return p.baseDelay
}

// Classify maps a retry counter to the strategy for the next attempt.
// A retry count of -1 means no attempt has been recorded yet.
func (p *Policy) Classify(retryCount int, forceRedownload bool) Decision {
	switch {
	case forceRedownload:
		return DecisionRedownload
	case retryCount <= p.retryBeforeRedownload:
		return DecisionRetry
	case retryCount <= p.retryLimit:
		return DecisionRedownload
	default:
		return DecisionReset
	}
}

// Delay returns the wait before the given attempt may run.
// It grows as baseDelay * 2^attempt, is clamped at MaxDelay and always carries
// the fixed jitter, so it never exceeds MaxDelay + baseDelay.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	exp := p.baseDelay
	for i := 0; i < attempt && exp < MaxDelay; i++ {
		exp *= 2
	}
	exp = min(exp, MaxDelay)

	return exp + time.Duration(p.jitter*float64(p.baseDelay))
}

// NextRetryAt returns the earliest time the given attempt may run.
func (p *Policy) NextRetryAt(now time.Time, attempt int) time.Time {
	return now.Add(p.Delay(attempt))
}
