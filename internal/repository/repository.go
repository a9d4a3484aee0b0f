// Package repository persists task definitions and execution history behind
// narrow interfaces so the engine and services never touch gorm directly.
package repository

import (
	"context"
	"errors"

	"task-scheduler-service/internal/models"
)

// ErrAlreadyFinal is returned by Finalize when the execution row already
// reached a terminal status. Callers racing an external termination treat
// this as a benign loss.
var ErrAlreadyFinal = errors.New("execution already finalized")

// TaskFilter narrows List results. Nil fields match everything.
type TaskFilter struct {
	TaskType *models.TaskType
	Enabled  *bool
}

// ExecutionStats aggregates history for one task or the whole system.
type ExecutionStats struct {
	Total              int64   `json:"total"`
	Success            int64   `json:"success"`
	Failed             int64   `json:"failed"`
	Running            int64   `json:"running"`
	Terminated         int64   `json:"terminated"`
	SuccessRate        float64 `json:"success_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// TaskRepository stores task definitions.
type TaskRepository interface {
	Create(ctx context.Context, task *models.ScheduledTask) error
	Update(ctx context.Context, task *models.ScheduledTask) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.ScheduledTask, error)
	GetByName(ctx context.Context, name string) (*models.ScheduledTask, error)
	List(ctx context.Context, filter TaskFilter) ([]models.ScheduledTask, error)
	// Transaction runs fn against a transactional copy of the repository.
	// Returning an error rolls back every write fn made, which lets callers
	// couple a row update to an external side effect.
	Transaction(ctx context.Context, fn func(TaskRepository) error) error
}

// ExecutionRepository stores execution history.
type ExecutionRepository interface {
	Create(ctx context.Context, exec *models.TaskExecution) error
	GetByID(ctx context.Context, id uint) (*models.TaskExecution, error)
	ListByTask(ctx context.Context, taskID uint, limit, offset int) ([]models.TaskExecution, error)
	// LatestByTask returns the newest execution for a task, or (nil, nil)
	// when the task never ran.
	LatestByTask(ctx context.Context, taskID uint) (*models.TaskExecution, error)
	// LatestPerTask resolves the newest execution for each given task in one
	// query. Tasks that never ran are absent from the result.
	LatestPerTask(ctx context.Context, taskIDs []uint) (map[uint]*models.TaskExecution, error)
	// Finalize persists a terminal transition. The update is guarded: it
	// only applies while the stored row is still non-terminal, so a row
	// finishes exactly once. Racing callers get ErrAlreadyFinal.
	Finalize(ctx context.Context, exec *models.TaskExecution) error
	// SweepRunning finalizes rows left RUNNING by a previous process as
	// TERMINATED with the given message. Returns how many rows were swept.
	SweepRunning(ctx context.Context, message string) (int64, error)
	Stats(ctx context.Context, taskID *uint) (*ExecutionStats, error)
}
