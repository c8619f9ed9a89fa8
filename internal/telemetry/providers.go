package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ProviderOption configures how the tracer and meter providers are built
type ProviderOption func(*providerSettings)

type providerSettings struct {
	serviceName    string
	serviceVersion string
	endpoint       string
	insecure       bool
	tracing        *TracingConfig
	metrics        *MetricsConfig
	registerer     promclient.Registerer
}

func newProviderSettings(opts []ProviderOption) *providerSettings {
	s := &providerSettings{
		serviceName:    DefaultServiceName,
		serviceVersion: "unknown",
		endpoint:       DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithServiceName sets the service.name resource attribute
func WithServiceName(name string) ProviderOption {
	return func(s *providerSettings) {
		s.serviceName = name
	}
}

// WithServiceVersion sets the service.version resource attribute
func WithServiceVersion(version string) ProviderOption {
	return func(s *providerSettings) {
		s.serviceVersion = version
	}
}

// WithEndpoint sets the OTLP collector endpoint
func WithEndpoint(endpoint string) ProviderOption {
	return func(s *providerSettings) {
		s.endpoint = endpoint
	}
}

// WithInsecure exports over plain HTTP
func WithInsecure(insecure bool) ProviderOption {
	return func(s *providerSettings) {
		s.insecure = insecure
	}
}

// WithTracing sets the tracing configuration
func WithTracing(tc *TracingConfig) ProviderOption {
	return func(s *providerSettings) {
		s.tracing = tc
	}
}

// WithMetrics sets the metrics configuration
func WithMetrics(mc *MetricsConfig) ProviderOption {
	return func(s *providerSettings) {
		s.metrics = mc
	}
}

// WithPrometheusRegisterer sets where the Prometheus reader registers its
// collector. Required when metrics.prometheus is enabled.
func WithPrometheusRegisterer(reg promclient.Registerer) ProviderOption {
	return func(s *providerSettings) {
		s.registerer = reg
	}
}

// newResource describes this process. resource.New is used rather than
// resource.Default to avoid schema URL conflicts.
func (s *providerSettings) newResource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.serviceName),
			semconv.ServiceVersion(s.serviceVersion),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// NewTracerProvider creates a TracerProvider exporting over OTLP HTTP.
// A no-op provider is returned when tracing is disabled.
// The caller must Shutdown the returned SDK provider.
func NewTracerProvider(ctx context.Context, opts ...ProviderOption) (trace.TracerProvider, error) {
	s := newProviderSettings(opts)
	if !s.tracing.enabled() {
		slog.Info("Tracing disabled, using no-op tracer provider")
		return tracenoop.NewTracerProvider(), nil
	}

	res, err := s.newResource(ctx)
	if err != nil {
		return nil, err
	}

	exportOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		exportOpts = append(exportOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exportOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	sampling := s.tracing.GetSampling()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampling))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if s.insecure {
		slog.Warn("Tracing exports over unencrypted HTTP; use only in development environments")
	}
	slog.Info("Tracing initialized", "endpoint", s.endpoint, "sampling_ratio", sampling)

	return tp, nil
}

// NewMeterProvider creates a MeterProvider with an OTLP push reader, a
// Prometheus pull reader, or both, as configured.
// A no-op provider is returned when metrics are disabled.
// The caller must Shutdown the returned SDK provider.
func NewMeterProvider(ctx context.Context, opts ...ProviderOption) (metric.MeterProvider, error) {
	s := newProviderSettings(opts)
	if !s.metrics.enabled() {
		slog.Info("Metrics disabled, using no-op meter provider")
		return metricnoop.NewMeterProvider(), nil
	}

	res, err := s.newResource(ctx)
	if err != nil {
		return nil, err
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if s.metrics.GetOTLP() {
		reader, err := s.otlpReader(ctx, s.metrics.GetInterval())
		if err != nil {
			return nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}

	if s.metrics.Prometheus {
		if s.registerer == nil {
			return nil, fmt.Errorf("prometheus metrics require a registerer")
		}
		reader, err := otelprom.New(otelprom.WithRegisterer(s.registerer))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)

	slog.Info("Metrics initialized",
		"otlp", s.metrics.GetOTLP(),
		"prometheus", s.metrics.Prometheus,
		"endpoint", s.endpoint,
		"interval", s.metrics.GetInterval(),
	)

	return mp, nil
}

func (s *providerSettings) otlpReader(ctx context.Context, interval time.Duration) (sdkmetric.Reader, error) {
	exportOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		exportOpts = append(exportOpts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, exportOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}
