package evaluation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted     = "completed"
	outcomeInvokeFailed  = "invoke_failed"
	outcomePersistFailed = "persist_failed"
)

var (
	invocationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_invocations_total",
			Help: "Judge invocations by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	invocationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judge_invocation_duration_seconds",
			Help:    "Latency of judge model calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	verdictCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_verdicts_total",
			Help: "Persisted verdicts by value",
		},
		[]string{"verdict"},
	)

	runCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evaluation_runs_total",
		Help: "Evaluation runs started",
	})
)
