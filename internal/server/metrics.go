// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and the functions it dispatches to.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/ragpdf-go/internal/events"
	"github.com/54b3r/ragpdf-go/internal/ingestion"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"

	// metricsNamespace prefixes every metric name.
	metricsNamespace = "ragpdf"
)

// Event and run outcomes used as the "outcome" label.
const (
	outcomeOK        = "ok"
	outcomeFailed    = "failed"
	outcomeDuplicate = "duplicate"
	outcomeError     = "error"
)

// Metrics holds all Prometheus metrics owned by the server. It is created
// before the event registry and ingestion pipeline so their hooks
// ([Metrics.ObserveRun], [Metrics.ObserveIngest]) can feed it.
type Metrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rateLimitedTotal counts requests rejected with 429, by handler.
	rateLimitedTotal *prometheus.CounterVec

	// eventsTotal counts events received on POST /api/events, partitioned by
	// event name and outcome: "ok", "failed", "duplicate", or "error".
	eventsTotal *prometheus.CounterVec

	// functionRunsTotal counts function invocations by function and outcome.
	functionRunsTotal *prometheus.CounterVec

	// functionDurationSeconds records how long each function run took.
	functionDurationSeconds *prometheus.HistogramVec

	// documentsIngestedTotal counts PDFs that completed ingestion.
	documentsIngestedTotal prometheus.Counter

	// chunksIngestedTotal counts chunks upserted into the vector store.
	chunksIngestedTotal prometheus.Counter
}

// NewMetrics registers all server metrics against reg and returns them.
// promauto.With(reg) is used so that each call registers into the provided
// registry rather than the global default, which keeps unit tests hermetic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limit, partitioned by handler.",
		}, []string{labelHandler}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "events",
			Name:      "received_total",
			Help:      "Events received on POST /api/events, partitioned by name and outcome.",
		}, []string{"name", "outcome"}),

		functionRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "function",
			Name:      "runs_total",
			Help:      "Function invocations, partitioned by function id and outcome.",
		}, []string{"function", "outcome"}),

		functionDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "function",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of function runs.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"function"}),

		documentsIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "PDF documents that completed ingestion.",
		}),

		chunksIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks embedded and upserted into the vector store.",
		}),
	}
}

// ObserveRun records one function run. Its signature matches
// events.WithRunHook.
func (m *Metrics) ObserveRun(fn events.Function, run events.Run) {
	outcome := outcomeOK
	if run.Failed() {
		outcome = outcomeFailed
	}
	m.functionRunsTotal.WithLabelValues(fn.ID, outcome).Inc()
	m.functionDurationSeconds.WithLabelValues(fn.ID).Observe(run.Duration.Seconds())
}

// ObserveIngest records a completed ingest. Its signature matches
// ingestion.WithOnIngested.
func (m *Metrics) ObserveIngest(res *ingestion.Result) {
	m.documentsIngestedTotal.Inc()
	m.chunksIngestedTotal.Add(float64(res.Chunks))
}
