package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/dealer-insights/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("dealer_insights", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/performance/{scope}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[]}`))
	})

	for _, scope := range []string{"brands", "models"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/performance/"+scope, nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/performance/{scope}", "200"))
	require.Equal(t, 2.0, total)
	require.Equal(t, 1, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.RespBytes))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("dealer_insights", nil, registry)
	second := obs.NewHTTPMetrics("dealer_insights", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestTracingMiddlewareNamesSpanByRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Get("/api/v1/performance/{scope}/export", func(w http.ResponseWriter, r *http.Request) {
		obs.Annotate(r.Context(), "session_id", "s-1")
		w.WriteHeader(http.StatusBadGateway)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/performance/brands/export", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /api/v1/performance/{scope}/export", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), attribute.Int("http.response.status_code", http.StatusBadGateway))
	require.Contains(t, spans[0].Attributes(), attribute.String("dealer_insights.session_id", "s-1"))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 10, 2.5}, obs.ParseBucketsCSV(" 5, 10,,x,-1,2.5"))
	require.Nil(t, obs.ParseBucketsCSV(""))
}
