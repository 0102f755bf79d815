package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation pipeline and the stats API.
type Metrics struct {
	RowsRead        prometheus.Counter
	RowsWritten     prometheus.Counter
	RowsSynthesized prometheus.Counter

	ReconcileFailures prometheus.Counter
	ReconcileDuration prometheus.Histogram

	// Dataset row counts by dataset name (grants, cancelled, population).
	DatasetRows *prometheus.GaugeVec

	// Stats API metrics.
	StatsRequests *prometheus.CounterVec // labels: endpoint, outcome={ok,error,bad_request}
	StatsCache    *prometheus.CounterVec // labels: endpoint, result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsWritten,
		m.RowsSynthesized,
		m.ReconcileFailures,
		m.ReconcileDuration,
		m.DatasetRows,
		m.StatsRequests,
		m.StatsCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grant_etl",
			Name:      "rows_read_total",
			Help:      "Total data rows read from the grants CSV.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grant_etl",
			Name:      "rows_written_total",
			Help:      "Total rows written to the cleaned CSV.",
		}),
		RowsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grant_etl",
			Name:      "rows_synthesized_total",
			Help:      "Total zero-filled rows inserted for missing (state, year) pairs.",
		}),
		ReconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grant_etl",
			Name:      "reconcile_failures_total",
			Help:      "Total reconciliation runs aborted by malformed or unknown-state rows.",
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "grant_etl",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of a complete load-reconcile-write run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		DatasetRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "grant_etl",
			Name:      "dataset_rows",
			Help:      "Rows loaded into the stats store per dataset.",
		}, []string{"dataset"}),
		StatsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grant_etl",
			Name:      "stats_requests_total",
			Help:      "Stats API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		StatsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grant_etl",
			Name:      "stats_cache_total",
			Help:      "Stats API response cache lookups by endpoint and result.",
		}, []string{"endpoint", "result"}),
	}
}
