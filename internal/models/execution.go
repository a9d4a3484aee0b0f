package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExecutionStatus tracks a single run of a task.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "PENDING"
	ExecutionRunning ExecutionStatus = "RUNNING"
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
	// ExecutionCompleted is a legacy alias for success. The engine writes
	// ExecutionSuccess; rows imported from older deployments may carry this.
	ExecutionCompleted  ExecutionStatus = "COMPLETED"
	ExecutionTerminated ExecutionStatus = "TERMINATED"
)

// IsTerminal reports whether the status is final. Terminal rows are never
// mutated again.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionSuccess, ExecutionFailed, ExecutionCompleted, ExecutionTerminated:
		return true
	}
	return false
}

// IsSuccess reports whether the status counts as a successful run.
func (s ExecutionStatus) IsSuccess() bool {
	return s == ExecutionSuccess || s == ExecutionCompleted
}

// TriggerType records what caused a run.
type TriggerType string

const (
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerManual    TriggerType = "MANUAL"
	TriggerRetry     TriggerType = "RETRY"
	TriggerWorkflow  TriggerType = "WORKFLOW"
)

// TaskExecution is one attempt at running a task. Each retry gets its own
// row with an incremented RetryCount. TaskID is a soft reference: history
// survives task deletion, so there is no foreign key constraint.
type TaskExecution struct {
	ID     uint `json:"id" gorm:"primarykey"`
	TaskID uint `json:"task_id" gorm:"index;not null"`
	// TaskName is denormalized so history stays readable after the owning
	// task is deleted.
	TaskName string          `json:"task_name" gorm:"size:255"`
	Status   ExecutionStatus `json:"status" gorm:"size:32;not null;index"`
	Trigger  TriggerType     `json:"trigger" gorm:"size:32"`

	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`

	Result       datatypes.JSONMap `json:"result" gorm:"type:json"`
	ErrorMessage string            `json:"error_message" gorm:"size:2048"`
	RetryCount   int               `json:"retry_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
}

func (TaskExecution) TableName() string {
	return "task_executions"
}

// GetResult returns the run result, never nil.
func (e *TaskExecution) GetResult() datatypes.JSONMap {
	if e.Result == nil {
		return datatypes.JSONMap{}
	}
	return e.Result
}

// SetResult stores the run result, normalizing nil to an empty document.
func (e *TaskExecution) SetResult(result map[string]interface{}) {
	if result == nil {
		e.Result = datatypes.JSONMap{}
		return
	}
	e.Result = datatypes.JSONMap(result)
}

// Finish stamps the terminal fields. Persisting the transition (and
// guaranteeing it happens only once) is the repository's job.
func (e *TaskExecution) Finish(status ExecutionStatus, at time.Time) {
	e.Status = status
	e.EndTime = &at
	e.DurationSeconds = at.Sub(e.StartTime).Seconds()
}
