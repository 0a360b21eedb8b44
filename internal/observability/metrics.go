package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the geocoding
// engine.
type Metrics struct {
	GeocodeRequests  prometheus.Counter
	LocationsMatched *prometheus.CounterVec // label: method={exact_name,fuzzy_name,point_in_polygon,directional_intersection}
	LocationsFailed  *prometheus.CounterVec // label: stage
	BatchSize        prometheus.Histogram
	BatchDuration    prometheus.Histogram

	// External oracle metrics.
	OracleRequests *prometheus.CounterVec // label: outcome={success,error,empty}
	OracleCache    *prometheus.CounterVec // label: result={hit,miss}
	OracleDuration prometheus.Histogram
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		GeocodeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "requests_total",
			Help:      "Total geocode batch requests served.",
		}),
		LocationsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "locations_matched_total",
			Help:      "Resolved location strings by match method of the first candidate.",
		}, []string{"method"}),
		LocationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "locations_failed_total",
			Help:      "Location strings that produced a per-item error, by failing stage.",
		}, []string{"stage"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geocoder",
			Name:      "batch_size",
			Help:      "Number of location strings per geocode request.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geocoder",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete geocode batch.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		OracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "oracle_requests_total",
			Help:      "External geocoding oracle requests by outcome.",
		}, []string{"outcome"}),
		OracleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "oracle_cache_total",
			Help:      "Oracle cache lookups by result.",
		}, []string{"result"}),
		OracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geocoder",
			Name:      "oracle_duration_seconds",
			Help:      "External oracle request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}

	prometheus.MustRegister(
		m.GeocodeRequests,
		m.LocationsMatched,
		m.LocationsFailed,
		m.BatchSize,
		m.BatchDuration,
		m.OracleRequests,
		m.OracleCache,
		m.OracleDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		GeocodeRequests:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoder", Name: "requests_total"}),
		LocationsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "locations_matched_total"}, []string{"method"}),
		LocationsFailed:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "locations_failed_total"}, []string{"stage"}),
		BatchSize:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geocoder", Name: "batch_size"}),
		BatchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geocoder", Name: "batch_duration_seconds"}),
		OracleRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "oracle_requests_total"}, []string{"outcome"}),
		OracleCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "oracle_cache_total"}, []string{"result"}),
		OracleDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geocoder", Name: "oracle_duration_seconds"}),
	}
}
