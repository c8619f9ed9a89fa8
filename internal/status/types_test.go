package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields Fields
		want   Health
	}{
		{name: "nothing tracked", fields: Fields{}, want: HealthHealthy},
		{name: "all synced", fields: Fields{Registries: 2, Synced: 2, Verified: 2}, want: HealthHealthy},
		{name: "one failed", fields: Fields{Registries: 2, Synced: 1, Failed: 1}, want: HealthDegraded},
		{name: "mismatch", fields: Fields{Registries: 1, Synced: 1, ChecksumMismatch: 1}, want: HealthDegraded},
		{name: "missing on primary", fields: Fields{Registries: 1, Synced: 1, MissingOnPrimary: 1}, want: HealthDegraded},
		{name: "all failed", fields: Fields{Registries: 2, Failed: 2}, want: HealthUnhealthy},
		{name: "never synced", fields: Fields{Registries: 2}, want: HealthHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Evaluate(tt.fields))
		})
	}
}

func TestHealth_Worst(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HealthDegraded, HealthHealthy.Worst(HealthDegraded))
	assert.Equal(t, HealthDegraded, HealthDegraded.Worst(HealthHealthy))
	assert.Equal(t, HealthUnknown, HealthDegraded.Worst(HealthUnknown))
	assert.Equal(t, HealthUnhealthy, HealthUnknown.Worst(HealthUnhealthy))
}
