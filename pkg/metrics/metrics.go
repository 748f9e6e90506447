package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionAttempts records grove admission attempts by outcome
	// (accepted|at_capacity|already_member|grove_complete|error).
	AdmissionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreleven_admission_attempts_total",
			Help: "Total number of grove admission attempts",
		},
		[]string{"result"},
	)

	// GroveCompletions counts groves that reached full membership.
	GroveCompletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreleven_grove_completions_total",
			Help: "Total number of groves that latched completion",
		},
	)

	// InviteResolutions counts invite code lookups by outcome (valid|invalid).
	InviteResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreleven_invite_resolutions_total",
			Help: "Total number of invite code resolutions",
		},
		[]string{"result"},
	)

	// QueueOperations counts speaker queue mutations by kind and outcome.
	QueueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreleven_queue_operations_total",
			Help: "Total number of speaker queue operations",
		},
		[]string{"op", "result"},
	)

	// MatchRankDuration measures compatibility ranking latency.
	MatchRankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coreleven_match_rank_duration_seconds",
			Help:    "Time spent ranking open groves for a user",
			Buckets: prometheus.DefBuckets,
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coreleven_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
