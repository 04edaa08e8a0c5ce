// Package metrics exposes Prometheus instrumentation for pipeline runs and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/recovery"
	"github.com/jonathan/portfolio-pipeline/internal/sanitize"
)

const namespace = "portfolio_pipeline"

// Labels
const (
	outcomeLabel   = "outcome"
	codeLabel      = "code"
	stageLabel     = "stage"
	operationLabel = "operation"
	categoryLabel  = "category"
	methodLabel    = "method"
	pathLabel      = "path"
)

// Outcome label values
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailure  = "failure"
)

// Metrics holds the pipeline collectors. It implements pipeline.ProgressSink.
type Metrics struct {
	gatherer prometheus.Gatherer

	runs          *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	retries       *prometheus.CounterVec
	events        *prometheus.CounterVec
	denials       prometheus.Counter
	duplicates    prometheus.Counter
	processing    prometheus.Histogram
	stageDuration *prometheus.HistogramVec

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var _ pipeline.ProgressSink = (*Metrics)(nil)

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome and error code",
		}, []string{outcomeLabel, codeLabel}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_fallbacks_total",
			Help:      "Stages that produced fallback content",
		}, []string{stageLabel}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried upstream attempts by operation and error category",
		}, []string{operationLabel, categoryLabel}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_total",
			Help:      "Progress events emitted by stage",
		}, []string{stageLabel}),
		denials: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denials_total",
			Help:      "Runs rejected by the rate limiter",
		}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_rejections_total",
			Help:      "Runs rejected as duplicate submissions",
		}),
		processing: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{stageLabel}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests partitioned by status code, method and route pattern",
		}, []string{codeLabel, methodLabel, pathLabel}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency partitioned by status code, method and route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{codeLabel, methodLabel, pathLabel}),
	}
}

// OnEvent implements pipeline.ProgressSink.
func (m *Metrics) OnEvent(p pipeline.Progress) {
	m.events.WithLabelValues(string(p.Stage)).Inc()
}

// ObserveRetry records a retried attempt. It matches pipeline.Config.OnRetry.
func (m *Metrics) ObserveRetry(e recovery.RetryEvent) {
	m.retries.WithLabelValues(e.Operation, string(e.Category)).Inc()
}

// ObserveResult records a finished run. It matches pipeline.Config.OnResult.
func (m *Metrics) ObserveResult(r *pipeline.Result) {
	if r == nil {
		return
	}

	outcome := OutcomeSuccess
	switch {
	case !r.Success:
		outcome = OutcomeFailure
	case len(r.Fallbacks) > 0:
		outcome = OutcomeDegraded
	}
	m.runs.WithLabelValues(outcome, r.ErrorCode).Inc()

	switch r.ErrorCode {
	case pipeline.CodeRateLimited:
		m.denials.Inc()
	case sanitize.CodeDuplicateSubmission.Upper():
		m.duplicates.Inc()
	}

	for _, stage := range r.Fallbacks {
		m.fallbacks.WithLabelValues(string(stage)).Inc()
	}
	for _, t := range r.Timings {
		m.stageDuration.WithLabelValues(string(t.Stage)).Observe(t.Duration.Seconds())
	}
	m.processing.Observe(r.ProcessingTime.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests and observes latency by route pattern. Unmatched requests are
// labelled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		m.requests.WithLabelValues(code, r.Method, path).Inc()
		m.latency.WithLabelValues(code, r.Method, path).Observe(time.Since(start).Seconds())
	})
}
