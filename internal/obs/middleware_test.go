package obs_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/healthz"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/healthz", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("toko", nil, registry)
	second := obs.NewHTTPMetrics("toko", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestRequestLoggerUsesRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "info")

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/orders/7", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, buf.String(), `"route":"/api/v1/orders/{id}"`)
	require.Contains(t, buf.String(), `"message":"http_request"`)
}
