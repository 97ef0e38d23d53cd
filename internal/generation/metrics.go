package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks finished generation calls per operation and outcome
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_generation_requests_total",
			Help: "Total number of generation calls by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// AttemptsTotal tracks transport calls, including retries
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_generation_attempts_total",
			Help: "Total number of upstream generation attempts",
		},
		[]string{"operation"},
	)

	// RetriesTotal tracks backoff waits per failure kind
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_generation_retries_total",
			Help: "Total number of retries after transient failures",
		},
		[]string{"operation", "kind"},
	)

	// Duration tracks wall time of a whole call, waits included
	Duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tryon_generation_duration_seconds",
			Help:    "Generation call duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation"},
	)
)
