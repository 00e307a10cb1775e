package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepsTotal counts executed steps.
	// Labels: operation, outcome (success, failure)
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailagent",
			Subsystem: "executor",
			Name:      "steps_total",
			Help:      "Total number of executed plan steps by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// StepsSkipped counts unrecognized steps that were not dispatched.
	StepsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailagent",
			Subsystem: "executor",
			Name:      "steps_skipped_total",
			Help:      "Total number of unrecognized plan steps skipped",
		},
	)

	// SubOperationFailures counts failed per-email sub-calls.
	// Labels: stage (classify, categorize)
	SubOperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailagent",
			Subsystem: "executor",
			Name:      "sub_operation_failures_total",
			Help:      "Total number of failed per-email classify or categorize calls",
		},
		[]string{"stage"},
	)

	// StepDuration tracks how long each step takes, sub-calls included.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mailagent",
			Subsystem: "executor",
			Name:      "step_duration_seconds",
			Help:      "Duration of plan step execution in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
