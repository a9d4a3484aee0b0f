// Package telemetry exposes Prometheus metrics for the scheduler and the
// execution engine on a sidecar HTTP listener, separate from the API server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskscheduler",
		Subsystem: "engine",
		Name:      "executions_started_total",
		Help:      "Execution attempts started, labelled by task type and trigger.",
	}, []string{"task_type", "trigger"})

	ExecutionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskscheduler",
		Subsystem: "engine",
		Name:      "executions_finished_total",
		Help:      "Execution attempts finished, labelled by task type and terminal status.",
	}, []string{"task_type", "status"})

	ExecutionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskscheduler",
		Subsystem: "engine",
		Name:      "executions_inflight",
		Help:      "Executions currently holding a worker slot.",
	})

	ExecutionsQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskscheduler",
		Subsystem: "engine",
		Name:      "executions_queued",
		Help:      "Dispatched runs waiting for a worker slot.",
	})

	ExecutionDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskscheduler",
		Subsystem: "engine",
		Name:      "execution_duration_seconds",
		Help:      "Wall-clock time of one execution attempt.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"task_type"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskscheduler",
		Subsystem: "engine",
		Name:      "retries_total",
		Help:      "Retry attempts scheduled after failed executions.",
	}, []string{"task_type"})

	ScheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskscheduler",
		Subsystem: "scheduler",
		Name:      "jobs_registered",
		Help:      "Jobs currently registered with the cron scheduler.",
	})
)
