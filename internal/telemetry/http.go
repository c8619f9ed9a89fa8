package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// HTTPInstrumentationName names the tracer and meter of the replication API
const HTTPInstrumentationName = "github.com/stacklok/toolhive-replication-server/http"

// unknownRoute labels requests chi could not route, keeping label cardinality bounded
const unknownRoute = "unknown_route"

// HTTPInstrumentation traces and measures requests to the replication API
type HTTPInstrumentation struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	requestDuration metric.Float64Histogram
	requestsTotal   metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
}

// NewHTTPInstrumentation creates instrumentation from the given providers.
// Either provider may be nil to skip that signal; both nil yields nil.
func NewHTTPInstrumentation(tp trace.TracerProvider, mp metric.MeterProvider) (*HTTPInstrumentation, error) {
	if tp == nil && mp == nil {
		return nil, nil
	}

	h := &HTTPInstrumentation{}
	if tp != nil {
		h.tracer = tp.Tracer(HTTPInstrumentationName)
		h.propagator = otel.GetTextMapPropagator()
	}
	if mp == nil {
		return h, nil
	}

	meter := mp.Meter(HTTPInstrumentationName)
	var err error
	h.requestDuration, err = meter.Float64Histogram(
		"thv_repl_http_request_duration_seconds",
		metric.WithDescription("Duration of replication API requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}
	h.requestsTotal, err = meter.Int64Counter(
		"thv_repl_http_requests_total",
		metric.WithDescription("Total number of replication API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	h.activeRequests, err = meter.Int64UpDownCounter(
		"thv_repl_http_active_requests",
		metric.WithDescription("Number of in-flight replication API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Middleware wraps next with tracing and metrics. A nil receiver passes through.
func (h *HTTPInstrumentation) Middleware(next http.Handler) http.Handler {
	if h == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// r's context may be cancelled once ServeHTTP returns
		ctx := r.Context()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		var span trace.Span
		if h.tracer != nil {
			ctx = h.propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
			ctx, span = h.tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()
			r = r.WithContext(ctx)
		}

		if h.activeRequests != nil {
			h.activeRequests.Add(ctx, 1)
			defer h.activeRequests.Add(ctx, -1)
		}

		next.ServeHTTP(ww, r)

		// chi fills the route pattern while routing, so read it afterwards
		route := routePattern(r)
		code := ww.Status()

		if span != nil {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCode(code),
			)
			if code >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(code))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		}

		if h.requestsTotal != nil {
			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.String("status_code", strconv.Itoa(code)),
			)
			h.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			h.requestsTotal.Add(ctx, 1, attrs)
		}
	})
}

// routePattern returns the chi route pattern of r, e.g. "/api/v1/checksums/{type}/*"
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unknownRoute
}
