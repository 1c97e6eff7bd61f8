// Package metrics declares the service's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal counts vote transactions by outcome.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmerge_votes_total",
		Help: "Vote transactions by outcome",
	}, []string{"outcome"})

	// RankDuration records how long a ranking pass takes, store read included.
	RankDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mindmerge_rank_duration_seconds",
		Help:    "Feed ranking latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"audience"})

	// SearchEvaluations counts search filter runs.
	SearchEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindmerge_search_evaluations_total",
		Help: "Search filter evaluations",
	})

	// StaleResults counts feed results discarded because a newer request
	// superseded them.
	StaleResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmerge_stale_results_total",
		Help: "Feed results dropped as superseded",
	}, []string{"section"})
)

// Vote outcomes.
const (
	OutcomeRecorded = "recorded"
	OutcomeMissing  = "missing"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Audience labels whether a ranking pass ran for a guest.
func Audience(guest bool) string {
	if guest {
		return "guest"
	}
	return "member"
}

// TrackRank returns a function that records the elapsed time when called
// (e.g. defer).
func TrackRank(guest bool) func() {
	start := time.Now()
	return func() {
		RankDuration.WithLabelValues(Audience(guest)).Observe(time.Since(start).Seconds())
	}
}
