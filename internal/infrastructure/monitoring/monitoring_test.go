package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/application/dietjob"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestPipelineMetricsCounts(t *testing.T) {
	m := NewPipelineMetrics()

	m.ObserveStep(job.StatusInterpreting, dietjob.OutcomeSucceeded, time.Second)
	m.ObserveStep(job.StatusInterpreting, dietjob.OutcomeSkipped, 0)
	m.JobFinished(job.StatusCompleted)
	m.ObserveCompletion("GEMINI", 1, 100*time.Millisecond, nil)
	m.ObserveCompletion("GEMINI", 2, 100*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues(string(job.StatusInterpreting), dietjob.OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues(string(job.StatusInterpreting), dietjob.OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsFinishedTotal.WithLabelValues(string(job.StatusCompleted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completionsTotal.WithLabelValues("GEMINI", "error")))
}

func TestMetricsEndpointAndMiddleware(t *testing.T) {
	m := NewPipelineMetrics()
	m.Gauge("queue_depth", "Queued triggers", func() float64 { return 3 })

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/diet-jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diet-jobs/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `dietgen_http_requests_total{method="GET",route="/api/v1/diet-jobs/{id}",status_code="404"} 1`), body)
	assert.Contains(t, body, "dietgen_queue_depth 3")
}

func TestTracingDisabledByDefault(t *testing.T) {
	tp, err := NewTracingProvider(context.Background(), config.AppConfig{Name: "dietgen"}, config.MonitoringConfig{TraceExporter: ExporterNone}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))

	_, err = NewTracingProvider(context.Background(), config.AppConfig{}, config.MonitoringConfig{TraceExporter: "zipkin"}, zap.NewNop())
	assert.Error(t, err)
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid}))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", TraceIDFromContext(ctx))
}
