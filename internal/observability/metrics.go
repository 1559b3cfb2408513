package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion
// and the query API.
type Metrics struct {
	IngestRequestsConsumed prometheus.Counter
	SummariesProduced      prometheus.Counter
	IngestErrors           prometheus.Counter
	PipelineRunning        prometheus.Gauge

	GridRecords    *prometheus.CounterVec // labels: outcome={inserted,duplicate}
	StationRecords *prometheus.CounterVec // labels: outcome={inserted,duplicate}
	FacesSkipped   *prometheus.CounterVec // labels: reason={below_threshold,unsupported}
	IngestDuration prometheus.Histogram

	QueryCache *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestRequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_requests_consumed_total",
			Help:      "Total ingest requests read from the request topic.",
		}),
		SummariesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_summaries_produced_total",
			Help:      "Total ingest summaries written to the summary topic.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Total ingest requests that were malformed or failed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingest pipeline is active, 0 when shut down.",
		}),
		GridRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_records_total",
			Help:      "Grid records upserted, by outcome.",
		}, []string{"outcome"}),
		StationRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_records_total",
			Help:      "Station records upserted, by outcome.",
		}, []string{"outcome"}),
		FacesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_skipped_total",
			Help:      "Mesh faces not persisted, by reason.",
		}, []string{"reason"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete ingestion pass.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      "Query cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IngestRequestsConsumed,
		m.SummariesProduced,
		m.IngestErrors,
		m.PipelineRunning,
		m.GridRecords,
		m.StationRecords,
		m.FacesSkipped,
		m.IngestDuration,
		m.QueryCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
