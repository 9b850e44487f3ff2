package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Classifications counts verdicts returned, by strength and outcome
	// (model, fallback, cache).
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regretgpt_classifications_total",
			Help: "Total number of classifications served",
		},
		[]string{"strength", "outcome"},
	)

	// UpstreamAttempts counts calls to the generation service per model.
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regretgpt_upstream_attempts_total",
			Help: "Total number of upstream model calls",
		},
		[]string{"model", "result"},
	)

	ClassifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "regretgpt_classify_duration_seconds",
			Help:    "Time spent producing a verdict",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CacheLookups counts verdict cache hits, misses and errors.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regretgpt_cache_lookups_total",
			Help: "Total number of verdict cache lookups",
		},
		[]string{"result"},
	)
)
