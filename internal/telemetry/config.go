// Package telemetry provides OpenTelemetry instrumentation for the replication server.
// Metrics can be pushed over OTLP, scraped from /metrics, or both. Traces are
// exported over OTLP.
package telemetry

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "thv-replication-server"

	// DefaultEndpoint is the default OTLP endpoint for telemetry
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the default trace sampling rate (5%)
	DefaultSampling = 0.05

	// DefaultMetricsInterval is the default OTLP metrics push interval
	DefaultMetricsInterval = 60 * time.Second

	// minMetricsInterval bounds how often metrics may be pushed
	minMetricsInterval = time.Second
)

// Config represents the root telemetry configuration
type Config struct {
	// Enabled controls whether telemetry is enabled globally
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to "thv-replication-server"
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the application version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector endpoint in "host:port" form.
	// The /v1/traces and /v1/metrics paths are appended by the exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows plain HTTP to the collector
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig defines tracing-specific configuration
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of root traces sampled (0.0 to 1.0).
	// Spans whose parent was sampled upstream are always kept.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig defines metrics-specific configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// OTLP pushes metrics to the collector endpoint. Defaults to true.
	OTLP *bool `yaml:"otlp,omitempty"`

	// Prometheus exposes metrics for scraping on /metrics
	Prometheus bool `yaml:"prometheus,omitempty"`

	// Interval is the OTLP push interval as a Go duration, e.g. "30s"
	Interval string `yaml:"interval,omitempty"`
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio. Zero means unset and yields DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0.0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetOTLP reports whether metrics are pushed over OTLP
func (c *MetricsConfig) GetOTLP() bool {
	if c.OTLP == nil {
		return true
	}
	return *c.OTLP
}

// GetInterval returns the OTLP push interval. Call Validate first; an
// unparsable value falls back to DefaultMetricsInterval.
func (c *MetricsConfig) GetInterval() time.Duration {
	if c.Interval == "" {
		return DefaultMetricsInterval
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return DefaultMetricsInterval
	}
	return d
}

func (c *TracingConfig) enabled() bool {
	return c != nil && c.Enabled
}

func (c *MetricsConfig) enabled() bool {
	return c != nil && c.Enabled
}

// Validate validates the telemetry configuration
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate validates the tracing configuration
func (c *TracingConfig) Validate() error {
	if !c.enabled() {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1.0 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}
	return nil
}

// Validate validates the metrics configuration
func (c *MetricsConfig) Validate() error {
	if !c.enabled() {
		return nil
	}

	var errs []error
	if !c.GetOTLP() && !c.Prometheus {
		errs = append(errs, errors.New("at least one of otlp or prometheus must be enabled"))
	}
	if c.Interval != "" {
		d, err := time.ParseDuration(c.Interval)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("invalid interval %q: %w", c.Interval, err))
		case d < minMetricsInterval:
			errs = append(errs, fmt.Errorf("interval must be at least %s, got %s", minMetricsInterval, d))
		}
	}
	return errors.Join(errs...)
}
