package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	commits     *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	extractions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	requests    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "commits_total",
			Help:      "Rows written to the shared store.",
		}, []string{"table", "op"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "conflicts_total",
			Help:      "Guarded writes that found the target row changed.",
		}, []string{"table"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "failures_total",
			Help:      "Requests that ended without a commit, by reason.",
		}, []string{"table", "reason"}),
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "extractions_total",
			Help:      "Calls to the inference service, by outcome.",
		}, []string{"kind", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "extraction_duration_seconds",
			Help:      "Latency of calls to the inference service.",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}, []string{"kind"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "requests_total",
			Help:      "How many HTTP requests processed, partitioned by status code and HTTP method.",
		}, []string{"code", "method", "url"}),
		durations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "request_duration_seconds",
			Help:      "The HTTP request latencies in seconds.",
		}, []string{"code", "method", "url"}),
	}
}

func (m *Metrics) Commit(table, op string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(table, op).Inc()
}

func (m *Metrics) Conflict(table string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(table).Inc()
}

func (m *Metrics) Failure(table, reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(table, reason).Inc()
}

func (m *Metrics) Extraction(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(kind, outcome).Inc()
	m.latency.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) Request(code, method, url string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(code, method, url).Inc()
	m.durations.WithLabelValues(code, method, url).Observe(took.Seconds())
}
