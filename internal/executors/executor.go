// Package executors contains everything that can actually run a task: the
// type-keyed registry, the common command/data-action router, the shell
// executor, the data-sync bridge, and the workflow orchestrator.
package executors

import (
	"context"

	"gorm.io/datatypes"

	"task-scheduler-service/internal/models"
)

// ExecutionInput carries the task definition and the execution row for one
// attempt. The execution row is already persisted as RUNNING when Execute
// is called.
type ExecutionInput struct {
	Task      *models.ScheduledTask
	Execution *models.TaskExecution
}

// Executor runs one attempt of a task. The returned document becomes the
// execution result; errors are classified through the models taxonomy and
// decide whether the attempt is retried.
type Executor interface {
	Execute(ctx context.Context, input *ExecutionInput) (datatypes.JSONMap, error)
	TaskType() models.TaskType
}

// ConfigValidator is implemented by executors that can reject a task
// definition without running it. The engine checks it before creating any
// execution record, and the task service checks it before persisting a
// definition.
type ConfigValidator interface {
	ValidateConfig(ctx context.Context, task *models.ScheduledTask) error
}

// MemberRunner runs a workflow member to completion, including the member's
// own retry policy, and returns its final execution row. The engine
// implements this; having the interface here keeps the workflow executor
// ignorant of the engine.
type MemberRunner interface {
	RunMember(ctx context.Context, task *models.ScheduledTask) (*models.TaskExecution, error)
}
