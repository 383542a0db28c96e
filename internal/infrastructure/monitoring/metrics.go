// Package monitoring exposes Prometheus metrics and OpenTelemetry tracing
// for the pipeline and the HTTP API.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alchemorsel/dietgen/internal/application/ai"
	"github.com/alchemorsel/dietgen/internal/application/dietjob"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dietgen"

// PipelineMetrics records step, job, completion and HTTP metrics on its
// own registry.
type PipelineMetrics struct {
	registry *prometheus.Registry

	stepsTotal         *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	jobsFinishedTotal  *prometheus.CounterVec
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var (
	_ dietjob.Metrics = (*PipelineMetrics)(nil)
	_ ai.Observer     = (*PipelineMetrics)(nil)
)

// NewPipelineMetrics creates the collectors and registers them together
// with the Go runtime and process collectors.
func NewPipelineMetrics() *PipelineMetrics {
	m := &PipelineMetrics{
		registry: prometheus.NewRegistry(),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_steps_total",
			Help:      "Pipeline steps handled, by status and outcome",
		}, []string{"status", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Time spent executing a pipeline step",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
		jobsFinishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status",
		}, []string{"status"}),
		completionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_completions_total",
			Help:      "Completion attempts, by provider and result",
		}, []string{"provider", "result"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_completion_duration_seconds",
			Help:      "Completion attempt latency",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		}, []string{"provider"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stepsTotal, m.stepDuration, m.jobsFinishedTotal,
		m.completionsTotal, m.completionDuration,
		m.httpRequestsTotal, m.httpRequestDuration,
	)
	return m
}

// Registry returns the registry backing the metrics.
func (m *PipelineMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *PipelineMetrics) ObserveStep(status job.Status, outcome string, duration time.Duration) {
	m.stepsTotal.WithLabelValues(string(status), outcome).Inc()
	if outcome != dietjob.OutcomeSkipped {
		m.stepDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
	}
}

func (m *PipelineMetrics) JobFinished(status job.Status) {
	m.jobsFinishedTotal.WithLabelValues(string(status)).Inc()
}

func (m *PipelineMetrics) ObserveCompletion(provider string, _ int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.completionsTotal.WithLabelValues(provider, result).Inc()
	m.completionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Gauge registers a gauge read from fn at scrape time.
func (m *PipelineMetrics) Gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not explode cardinality.
func (m *PipelineMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
