// Package metrics defines the Prometheus collectors used by the playground
// and exposes an HTTP handler for scraping. All recording helpers are safe
// to call on a nil *Metrics, which disables recording.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes recorded in SearchQueriesTotal.
const (
	OutcomeOK         = "ok"
	OutcomeZeroResult = "zero_result"
	OutcomeError      = "error"
	OutcomeStale      = "stale"
)

// Metrics holds all Prometheus collectors for the playground.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheErrorsTotal     prometheus.Counter
	SyncRunsTotal        *prometheus.CounterVec
	SyncDuration         prometheus.Histogram
	SyncDatasetsTotal    *prometheus.CounterVec
	DocsLoadedTotal      *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	AnalyticsDropped     prometheus.Counter
}

// New creates all collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by collection and outcome (ok, zero_result, error, stale).",
			},
			[]string{"collection", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"collection"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of hits returned per applied search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		CacheErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_errors_total",
				Help: "Total number of query cache read or write failures.",
			},
		),
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total dataset sync runs by status (ok, partial, failed, aborted).",
			},
			[]string{"status"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sync_duration_seconds",
				Help:    "Wall time of a full dataset sync run.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		SyncDatasetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_datasets_total",
				Help: "Per-dataset sync outcomes by collection and final stage.",
			},
			[]string{"collection", "stage"},
		),
		DocsLoadedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_loaded_total",
				Help: "Total documents handed to the engine by collection.",
			},
			[]string{"collection"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Analytics events dropped because the collector buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.SyncRunsTotal,
		m.SyncDuration,
		m.SyncDatasetsTotal,
		m.DocsLoadedTotal,
		m.CircuitBreakerState,
		m.AnalyticsDropped,
	)

	return m
}

// ObserveSearch records one resolved query.
func (m *Metrics) ObserveSearch(collection, outcome string, latency time.Duration, hits int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(collection, outcome).Inc()
	if outcome == OutcomeStale {
		return
	}
	m.SearchLatency.WithLabelValues(collection).Observe(latency.Seconds())
	if outcome != OutcomeError {
		m.SearchResultsCount.Observe(float64(hits))
	}
}

// ObserveCache records a cache lookup; err marks a backend failure.
func (m *Metrics) ObserveCache(hit bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.CacheErrorsTotal.Inc()
	case hit:
		m.CacheHitsTotal.Inc()
	default:
		m.CacheMissesTotal.Inc()
	}
}

// ObserveSyncDataset records the final stage one dataset reached.
func (m *Metrics) ObserveSyncDataset(collection, stage string, docs int) {
	if m == nil {
		return
	}
	m.SyncDatasetsTotal.WithLabelValues(collection, stage).Inc()
	if docs > 0 {
		m.DocsLoadedTotal.WithLabelValues(collection).Add(float64(docs))
	}
}

// ObserveSyncRun records a completed sync run.
func (m *Metrics) ObserveSyncRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.SyncRunsTotal.WithLabelValues(status).Inc()
	m.SyncDuration.Observe(d.Seconds())
}

// SetBreakerState exports a circuit breaker state as its numeric value.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) IncAnalyticsDropped() {
	if m == nil {
		return
	}
	m.AnalyticsDropped.Inc()
}

// Handler returns the Prometheus scrape HTTP handler for g. A nil g uses
// the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
