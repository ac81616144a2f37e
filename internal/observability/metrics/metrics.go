// Package metrics exposes Prometheus instrumentation for the monitoring core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsIngested counts vital readings accepted by the dispatcher.
	ReadingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neovance_readings_ingested_total",
			Help: "Total number of vital readings ingested",
		},
	)

	// OutOfOrderReadings counts readings rejected by the rolling window and
	// processed in degraded mode against stale statistics.
	OutOfOrderReadings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neovance_out_of_order_readings_total",
			Help: "Total number of out-of-order readings processed in degraded mode",
		},
	)

	// AssessmentsByTier counts risk assessments by severity tier.
	AssessmentsByTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neovance_assessments_total",
			Help: "Total number of risk assessments by severity tier",
		},
		[]string{"tier"},
	)

	// AlertsCreated counts alerts opened, by trigger source.
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neovance_alerts_created_total",
			Help: "Total number of alerts created by trigger source",
		},
		[]string{"source"},
	)

	// AlertTransitions counts lifecycle transitions by resulting status.
	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neovance_alert_transitions_total",
			Help: "Total number of alert lifecycle transitions by resulting status",
		},
		[]string{"status"},
	)

	// ScoringDuration observes end-to-end ingest latency.
	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neovance_scoring_duration_seconds",
			Help:    "Latency of the update-score-alert pipeline per reading",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
	)
)
