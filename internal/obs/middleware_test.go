package obs_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/erp-billing/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("billing", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))

	// a second registration on the same registry reuses collectors
	again := obs.NewHTTPMetrics("billing", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestMiddlewareResolvesChiRoutePattern(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("billing", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware)
	var inside string
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/bills/{id}", func(w http.ResponseWriter, r *http.Request) {
			inside = obs.RoutePatternFromContext(r.Context())
			_, _ = w.Write([]byte("ok"))
		})
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/bills/b-77", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	require.Equal(t, "/api/v1/bills/{id}", inside)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/bills/{id}", "200")))

	var access map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &access))
	require.Equal(t, "/api/v1/bills/{id}", access["route"])
	require.EqualValues(t, 2, access["bytes"])

	ended := spans.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "GET /api/v1/bills/{id}", ended[0].Name())
}

func TestMiddlewareUnmatchedRoute(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("billing", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/bills/{id}", func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestRequestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/bills/{id}", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bills/42", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, access map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &access))
	require.Equal(t, "inside", inner["message"])
	require.NotEmpty(t, inner["request_id"])
	require.Equal(t, inner["request_id"], access["request_id"])
	require.Equal(t, "http_request", access["message"])
	require.EqualValues(t, http.StatusTeapot, access["status"])
	require.Equal(t, "/bills/42", access["path"])
}

func TestBillingMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := obs.NewBillingMetrics("billing", registry)

	m.ObservePriced("price", 2)
	m.ObservePriced("price", 0)
	m.ObserveRender("pdf", 5*time.Millisecond, nil)
	m.ObserveRender("pdf", time.Millisecond, errors.New("boom"))
	m.ObserveNotification("bill_created", nil)

	require.Equal(t, 2.0, testutil.ToFloat64(m.BillsPriced.WithLabelValues("price")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ZeroAmountLines.WithLabelValues("price")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.InvoiceRender.WithLabelValues("pdf", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.InvoiceRender.WithLabelValues("pdf", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("bill_created", "ok")))

	var nilMetrics *obs.BillingMetrics
	require.NotPanics(t, func() { nilMetrics.ObservePriced("price", 1) })
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 10.5}, obs.ParseBucketsCSV(" 5, x, -1,10.5,"))
	require.Nil(t, obs.ParseBucketsCSV(""))
}
