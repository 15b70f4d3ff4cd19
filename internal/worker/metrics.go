// Package worker — Prometheus instrumentation for the processing pipeline.
//
// Labels are kept low-cardinality: "result" classifies the terminal outcome
// of one envelope. Bot ids are deliberately not a label (unbounded).
package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	// updatesProcessed counts envelopes by terminal outcome.
	updatesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_updates_processed_total",
			Help: "Total number of processed update envelopes by result.",
		},
		[]string{"result"},
	)

	// processingLatency records per-envelope processing time, measured from
	// enqueue to completion so it includes queue wait.
	processingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_update_processing_seconds",
			Help:    "Time from enqueue to processed, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// queueDepth gauges the number of buffered envelopes, sampled at each pop.
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Current number of buffered update envelopes.",
		},
	)
)

// Outcome labels for updatesProcessed.
const (
	resultOK      = "ok"
	resultError   = "error"
	resultDropped = "rate_limited"
	resultSkipped = "skipped"
)

func init() {
	prometheus.MustRegister(updatesProcessed, processingLatency, queueDepth)
}
