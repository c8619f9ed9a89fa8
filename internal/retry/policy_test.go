package retry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Classify(t *testing.T) {
	t.Parallel()

	p := NewPolicy()

	tests := []struct {
		name            string
		retryCount      int
		forceRedownload bool
		want            Decision
	}{
		{name: "no attempts recorded", retryCount: -1, want: DecisionRetry},
		{name: "first failure", retryCount: 0, want: DecisionRetry},
		{name: "last incremental retry", retryCount: 5, want: DecisionRetry},
		{name: "first redownload", retryCount: 6, want: DecisionRedownload},
		{name: "last redownload", retryCount: 8, want: DecisionRedownload},
		{name: "reset after limit", retryCount: 9, want: DecisionReset},
		{name: "far past limit", retryCount: 1000, want: DecisionReset},
		{name: "forced redownload below threshold", retryCount: 0, forceRedownload: true, want: DecisionRedownload},
		{name: "forced redownload past limit", retryCount: 42, forceRedownload: true, want: DecisionRedownload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.Classify(tt.retryCount, tt.forceRedownload))
		})
	}
}

func TestPolicy_ClassifyCustomThresholds(t *testing.T) {
	t.Parallel()

	p := NewPolicy(WithRetryBeforeRedownload(1), WithRetryLimit(2))
	assert.Equal(t, DecisionRetry, p.Classify(1, false))
	assert.Equal(t, DecisionRedownload, p.Classify(2, false))
	assert.Equal(t, DecisionReset, p.Classify(3, false))

	// A limit below the redownload threshold is raised to it
	p = NewPolicy(WithRetryBeforeRedownload(4), WithRetryLimit(2))
	assert.Equal(t, DecisionRetry, p.Classify(4, false))
	assert.Equal(t, DecisionReset, p.Classify(5, false))
}

func TestPolicy_NextRetryAtIsBounded(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	attempts := []int{math.MinInt, -1, 0, 1, 5, 8, 13, 20, 39, 40, 63, 64, 1000, math.MaxInt}

	for _, jitter := range []float64{0, 0.5, 0.999} {
		p := NewPolicy(WithJitter(jitter))
		limit := now.Add(MaxDelay + p.BaseDelay())
		for _, attempt := range attempts {
			at := p.NextRetryAt(now, attempt)
			assert.False(t, at.After(limit), "attempt %d jitter %v: %s beyond %s", attempt, jitter, at, limit)
			assert.True(t, at.After(now), "attempt %d must be scheduled in the future", attempt)
		}
	}
}

func TestPolicy_DelayIsMonotonic(t *testing.T) {
	t.Parallel()

	p := NewPolicy(WithJitter(0.3), WithBaseDelay(30*time.Second))

	prev := time.Duration(-1)
	for attempt := -5; attempt < 200; attempt++ {
		d := p.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
}

func TestPolicy_DelayCurve(t *testing.T) {
	t.Parallel()

	p := NewPolicy(WithJitter(0), WithBaseDelay(time.Minute))

	assert.Equal(t, time.Minute, p.Delay(0))
	assert.Equal(t, 2*time.Minute, p.Delay(1))
	assert.Equal(t, 32*time.Minute, p.Delay(5))
	assert.Equal(t, MaxDelay, p.Delay(30))

	p = NewPolicy(WithJitter(0.5), WithBaseDelay(time.Minute))
	assert.Equal(t, time.Minute+30*time.Second, p.Delay(0))
	assert.Equal(t, MaxDelay+30*time.Second, p.Delay(500))
}

func TestDecision_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "retry", DecisionRetry.String())
	assert.Equal(t, "redownload", DecisionRedownload.String())
	assert.Equal(t, "reset", DecisionReset.String())
	assert.Equal(t, "unknown", Decision(99).String())
}
