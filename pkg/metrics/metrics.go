// Package metrics defines the Prometheus collectors of the search core and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the search core.
type Metrics struct {
	DocsIngestedTotal   *prometheus.CounterVec
	BulkBatchesTotal    *prometheus.CounterVec
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  *prometheus.HistogramVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	IndexDocCount       *prometheus.GaugeVec
	IndexTermCount      *prometheus.GaugeVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all collectors and registers them on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchcore_docs_ingested_total",
				Help: "Documents submitted through bulk ingestion by index and outcome.",
			},
			[]string{"index", "outcome"},
		),
		BulkBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchcore_bulk_batches_total",
				Help: "Bulk batches by index and status (ok, partial, failed).",
			},
			[]string{"index", "status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchcore_search_queries_total",
				Help: "Search queries by query type and result (hit, zero_result, error).",
			},
			[]string{"type", "result"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchcore_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"type"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchcore_search_results_count",
				Help:    "Total hits per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
			[]string{"type"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchcore_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "searchcore_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		IndexDocCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "searchcore_index_documents",
				Help: "Number of documents per index.",
			},
			[]string{"index"},
		),
		IndexTermCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "searchcore_index_terms",
				Help: "Number of distinct terms per index and field.",
			},
			[]string{"index", "field"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "searchcore_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.DocsIngestedTotal,
		m.BulkBatchesTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexDocCount,
		m.IndexTermCount,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the scrape handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
