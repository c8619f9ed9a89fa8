package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_NoOp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config"},
		{name: "disabled", config: &Config{Enabled: false, Metrics: &MetricsConfig{Enabled: true}}},
		{
			name: "enabled without signals",
			config: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: false},
				Metrics: &MetricsConfig{Enabled: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(context.Background(), tt.config)
			require.NoError(t, err)

			assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
			assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
			assert.Nil(t, tel.MetricsHandler())
			assert.NotNil(t, tel.Tracer("test"))
			assert.NoError(t, tel.Shutdown(context.Background()))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), &Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
	assert.Nil(t, tel)
}

func TestNew_PrometheusMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tel, err := New(ctx, &Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, OTLP: boolPtr(false), Prometheus: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	require.IsType(t, &sdkmetric.MeterProvider{}, tel.MeterProvider())

	syncMetrics, err := NewSyncMetrics(tel.MeterProvider())
	require.NoError(t, err)
	syncMetrics.RecordSyncDuration(ctx, "repository", "succeeded", 0)

	handler := tel.MetricsHandler()
	require.NotNil(t, handler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "thv_repl_sync_duration_seconds")
}

func TestNewMeterProvider_PrometheusRequiresRegisterer(t *testing.T) {
	t.Parallel()

	mp, err := NewMeterProvider(context.Background(),
		WithMetrics(&MetricsConfig{Enabled: true, OTLP: boolPtr(false), Prometheus: true}),
	)
	require.Error(t, err)
	assert.Nil(t, mp)
}

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tp, err := NewTracerProvider(ctx)
	require.NoError(t, err)
	assert.IsType(t, tracenoop.TracerProvider{}, tp)

	tp, err = NewTracerProvider(ctx,
		WithServiceName("replica-a"),
		WithServiceVersion("1.0.0"),
		WithEndpoint("localhost:4318"),
		WithInsecure(true),
		WithTracing(&TracingConfig{Enabled: true, Sampling: 1.0}),
	)
	require.NoError(t, err)
	sdk, ok := tp.(*sdktrace.TracerProvider)
	require.True(t, ok)

	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = sdk.Shutdown(shutdownCtx)
}
