package models

import (
	"time"

	"gorm.io/datatypes"
)

// TaskType classifies how a task is dispatched.
type TaskType string

const (
	// TaskTypeManual tasks run only when triggered explicitly. They carry no
	// schedule and are never registered with the scheduler.
	TaskTypeManual TaskType = "MANUAL"
	// TaskTypeCommon tasks run a single command or data action.
	TaskTypeCommon TaskType = "COMMON"
	// TaskTypeWorkflow tasks orchestrate other tasks as a serial or parallel
	// composition.
	TaskTypeWorkflow TaskType = "WORKFLOW"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeManual, TaskTypeCommon, TaskTypeWorkflow:
		return true
	}
	return false
}

// ScheduledTask is the persistent definition of a task: what to run, when to
// run it, and how to retry it. Execution history lives in TaskExecution.
type ScheduledTask struct {
	ID          uint   `json:"id" gorm:"primarykey"`
	Name        string `json:"name" gorm:"uniqueIndex;size:255;not null"`
	Description string `json:"description" gorm:"size:1024"`
	// JobID names the scheduler registration for this task. Assigned once at
	// create and stable for the lifetime of the row; deleting and recreating
	// a task yields a fresh JobID.
	JobID    string   `json:"job_id" gorm:"uniqueIndex;size:64;not null"`
	TaskType TaskType `json:"task_type" gorm:"size:32;not null;index"`

	// CronExpression and IntervalSeconds are mutually exclusive. Both empty
	// means the task only runs when triggered manually.
	CronExpression  string `json:"cron_expression" gorm:"size:128"`
	IntervalSeconds int    `json:"interval_seconds"`

	Enabled bool `json:"enabled" gorm:"not null;default:true;index"`
	Paused  bool `json:"paused" gorm:"not null;default:false"`

	// Config is opaque to the engine; executors interpret it.
	Config datatypes.JSONMap `json:"config" gorm:"type:json"`

	MaxRetries    int `json:"max_retries" gorm:"not null;default:0"`
	RetryInterval int `json:"retry_interval" gorm:"not null;default:0"` // seconds between attempts

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScheduledTask) TableName() string {
	return "scheduled_tasks"
}

// HasSchedule reports whether the task carries a timer definition.
func (t *ScheduledTask) HasSchedule() bool {
	return t.CronExpression != "" || t.IntervalSeconds > 0
}

// GetConfig returns the task config, never nil.
func (t *ScheduledTask) GetConfig() datatypes.JSONMap {
	if t.Config == nil {
		return datatypes.JSONMap{}
	}
	return t.Config
}

// SetConfig stores cfg, normalizing nil to an empty document.
func (t *ScheduledTask) SetConfig(cfg map[string]interface{}) {
	if cfg == nil {
		t.Config = datatypes.JSONMap{}
		return
	}
	t.Config = datatypes.JSONMap(cfg)
}
