// Package metrics provides Prometheus metrics for the polling pipeline.
// Scrape them at /metrics when the status server is enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomePanic   = "panic"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptosentinel_cycles_total",
			Help: "Total number of pipeline cycles by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cryptosentinel_fetch_duration_seconds",
			Help:    "Latency of the listings request",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	AssetsFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cryptosentinel_assets_fetched",
			Help: "Number of assets in the most recent snapshot",
		},
	)

	AssetsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptosentinel_assets_skipped_total",
			Help: "Assets dropped because their payload failed validation",
		},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptosentinel_store_errors_total",
			Help: "Storage failures by operation",
		},
		[]string{"op"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptosentinel_notifications_total",
			Help: "Report and alert deliveries by result",
		},
		[]string{"result"},
	)

	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cryptosentinel_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that completed",
		},
	)
)
