package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SourcesTotal   *prometheus.CounterVec
	TablesTotal    *prometheus.CounterVec
	CommitsTotal   *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
	QueueDepth     prometheus.Gauge
}

// New registers every metric with reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		SourcesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablemagnifier_sources_total",
				Help: "Sources handled, by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		TablesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablemagnifier_tables_total",
				Help: "Table records created, by detection method.",
			},
			[]string{"method"},
		),
		CommitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablemagnifier_ledger_commits_total",
				Help: "Ledger commits, by outcome.",
			},
			[]string{"status"}, // success, failure
		),
		SourceDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablemagnifier_source_duration_seconds",
				Help:    "Time spent detecting and extracting one source.",
				Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
			},
			[]string{"kind"},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tablemagnifier_queue_depth",
				Help: "Source references waiting in the intake queue.",
			},
		),
	}
}

// Nop returns metrics bound to a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
