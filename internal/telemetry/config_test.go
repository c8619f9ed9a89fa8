package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	empty := &Config{}
	assert.Equal(t, DefaultServiceName, empty.GetServiceName())
	assert.Equal(t, "unknown", empty.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, empty.GetEndpoint())

	set := &Config{ServiceName: "replica-a", ServiceVersion: "1.2.3", Endpoint: "collector:4318"}
	assert.Equal(t, "replica-a", set.GetServiceName())
	assert.Equal(t, "1.2.3", set.GetServiceVersion())
	assert.Equal(t, "collector:4318", set.GetEndpoint())
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
	assert.Equal(t, 0.5, (&TracingConfig{Sampling: 0.5}).GetSampling())
	assert.Equal(t, 1.0, (&TracingConfig{Sampling: 1.0}).GetSampling())
}

func TestMetricsConfig_Getters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		config       *MetricsConfig
		wantOTLP     bool
		wantInterval time.Duration
	}{
		{
			name:         "defaults",
			config:       &MetricsConfig{},
			wantOTLP:     true,
			wantInterval: DefaultMetricsInterval,
		},
		{
			name:         "otlp disabled with custom interval",
			config:       &MetricsConfig{OTLP: boolPtr(false), Interval: "15s"},
			wantOTLP:     false,
			wantInterval: 15 * time.Second,
		},
		{
			name:         "unparsable interval falls back",
			config:       &MetricsConfig{Interval: "soon"},
			wantOTLP:     true,
			wantInterval: DefaultMetricsInterval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantOTLP, tt.config.GetOTLP())
			assert.Equal(t, tt.wantInterval, tt.config.GetInterval())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{
			name: "nil config",
		},
		{
			name:   "disabled config skips nested validation",
			config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 7}},
		},
		{
			name:   "enabled without signals",
			config: &Config{Enabled: true},
		},
		{
			name: "full config",
			config: &Config{
				Enabled:  true,
				Endpoint: "collector:4318",
				Tracing:  &TracingConfig{Enabled: true, Sampling: 0.25},
				Metrics:  &MetricsConfig{Enabled: true, Prometheus: true, Interval: "30s"},
			},
		},
		{
			name:   "disabled tracing ignores sampling",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Sampling: -1}},
		},
		{
			name:   "sampling above one",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			errMsg: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:   "negative sampling",
			config: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			errMsg: "tracing: sampling must be between 0.0 and 1.0",
		},
		{
			name:   "no metrics reader",
			config: &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, OTLP: boolPtr(false)}},
			errMsg: "metrics: at least one of otlp or prometheus must be enabled",
		},
		{
			name:   "invalid interval",
			config: &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "often"}},
			errMsg: `metrics: invalid interval "often"`,
		},
		{
			name:   "interval too short",
			config: &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "100ms"}},
			errMsg: "metrics: interval must be at least 1s",
		},
		{
			name: "errors are joined",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 2},
				Metrics: &MetricsConfig{Enabled: true, Interval: "often"},
			},
			errMsg: "tracing: sampling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
