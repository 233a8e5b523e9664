package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// interactionsTotal counts interactions by flow and outcome
	interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protocol_interactions_total",
		Help: "Timeline interactions by flow and outcome",
	}, []string{"flow", "outcome"})

	interactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "protocol_interaction_duration_seconds",
		Help:    "Interaction latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"flow"})

	completionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protocol_timeline_completions_total",
		Help: "Timelines stabilized by a first full completion",
	})

	timelinesOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protocol_timelines_opened_total",
		Help: "Timelines moved from DRAFT to OPEN",
	})
)
