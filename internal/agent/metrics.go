package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TasksTotal counts processed tasks.
// Labels: status (success, failed, plan_error)
var TasksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mailagent",
		Subsystem: "agent",
		Name:      "tasks_total",
		Help:      "Total number of processed tasks by final status",
	},
	[]string{"status"},
)
