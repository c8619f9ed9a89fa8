package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newInstrumentedRouter(t *testing.T, h *HTTPInstrumentation) http.Handler {
	t.Helper()

	r := chi.NewRouter()
	r.Use(h.Middleware)
	r.Get("/checksums/{type}/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/events", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMisdirectedRequest)
	})
	return r
}

func TestNewHTTPInstrumentation_NilProviders(t *testing.T) {
	t.Parallel()

	h, err := NewHTTPInstrumentation(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, h)

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	h.Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestHTTPInstrumentation_Spans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	h, err := NewHTTPInstrumentation(tp, nil)
	require.NoError(t, err)
	router := newInstrumentedRouter(t, h)

	tests := []struct {
		path       string
		wantName   string
		wantRoute  string
		wantStatus codes.Code
	}{
		{
			path:       "/checksums/repository/group/project",
			wantName:   "GET /checksums/{type}/*",
			wantRoute:  "/checksums/{type}/*",
			wantStatus: codes.Ok,
		},
		{
			path:       "/events",
			wantName:   "GET /events",
			wantRoute:  "/events",
			wantStatus: codes.Error,
		},
	}

	for _, tt := range tests {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, len(tests))
	for i, tt := range tests {
		span := spans[i]
		assert.Equal(t, tt.wantName, span.Name())
		assert.Equal(t, tt.wantStatus, span.Status().Code)
		assert.Contains(t, span.Attributes(), attribute.String("http.route", tt.wantRoute))
	}
}

func TestHTTPInstrumentation_Metrics(t *testing.T) {
	t.Parallel()

	mp, reader := newTestProvider(t)
	h, err := NewHTTPInstrumentation(nil, mp)
	require.NoError(t, err)
	router := newInstrumentedRouter(t, h)

	for range 2 {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/checksums/wiki/group/project", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	metrics := collect(t, reader)

	total, ok := metrics["thv_repl_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := make(map[string]int64)
	for _, dp := range total.DataPoints {
		route, _ := dp.Attributes.Value("route")
		counts[route.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["/checksums/{type}/*"])
	assert.Equal(t, int64(1), counts[unknownRoute])

	active, ok := metrics["thv_repl_http_active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Zero(t, dp.Value)
	}

	duration, ok := metrics["thv_repl_http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, duration.DataPoints)
}
