package models

import "time"

// TaskScheduleStatus is the user-facing state of a task. It is derived on
// read from the task flags, the live scheduler registration, and the latest
// execution; it is never stored.
type TaskScheduleStatus string

const (
	ScheduleRunning    TaskScheduleStatus = "RUNNING"
	SchedulePaused     TaskScheduleStatus = "PAUSED"
	ScheduleCompleted  TaskScheduleStatus = "COMPLETED"
	ScheduleFailed     TaskScheduleStatus = "FAILED"
	SchedulePending    TaskScheduleStatus = "PENDING"
	ScheduleTerminated TaskScheduleStatus = "TERMINATED"
	ScheduleDisabled   TaskScheduleStatus = "DISABLED"
	ScheduleDelayed    TaskScheduleStatus = "DELAYED"
	ScheduleScheduled  TaskScheduleStatus = "SCHEDULED"
	ScheduleExpired    TaskScheduleStatus = "EXPIRED"
)

// JobStatus is a snapshot of a scheduler registration. Exists is false when
// no registration is live (manual task, removed, or scheduler stopped).
type JobStatus struct {
	Exists      bool       `json:"exists"`
	Pending     bool       `json:"pending"`
	NextRunTime *time.Time `json:"next_run_time,omitempty"`
	IsExpired   bool       `json:"is_expired"`
	IsDelayed   bool       `json:"is_delayed"`
}

// ResolveScheduleStatus derives the schedule status for a task. The
// precedence is fixed: disabled and paused flags win over everything, then
// registration presence, then expiry and delay, then the latest execution.
// latest may be nil when the task has never run.
func ResolveScheduleStatus(enabled, paused bool, job JobStatus, latest *TaskExecution) TaskScheduleStatus {
	if !enabled {
		return ScheduleDisabled
	}
	if paused {
		return SchedulePaused
	}

	if !job.Exists {
		// No live registration: report what the last run did, or DISABLED
		// when there is nothing to report.
		if latest != nil {
			switch {
			case latest.Status == ExecutionRunning:
				return ScheduleRunning
			case latest.Status.IsSuccess():
				return ScheduleCompleted
			case latest.Status == ExecutionFailed:
				return ScheduleFailed
			case latest.Status == ExecutionTerminated:
				return ScheduleTerminated
			}
		}
		return ScheduleDisabled
	}

	if job.IsExpired {
		return ScheduleExpired
	}
	if job.IsDelayed {
		return ScheduleDelayed
	}

	if latest != nil {
		switch {
		case latest.Status == ExecutionRunning:
			return ScheduleRunning
		case latest.Status == ExecutionFailed:
			return ScheduleFailed
		case latest.Status == ExecutionTerminated:
			return ScheduleTerminated
		case latest.Status.IsSuccess() && !job.Pending && job.NextRunTime == nil:
			return ScheduleCompleted
		}
	}

	if job.Pending {
		return SchedulePending
	}
	return ScheduleScheduled
}
