package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"task-scheduler-service/internal/executors"
	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
	"task-scheduler-service/internal/scheduler"
)

// CreateTaskInput carries a new task definition. Enabled defaults to true
// when absent.
type CreateTaskInput struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	TaskType        models.TaskType        `json:"task_type"`
	CronExpression  string                 `json:"cron_expression"`
	IntervalSeconds int                    `json:"interval_seconds"`
	Enabled         *bool                  `json:"enabled"`
	Paused          bool                   `json:"paused"`
	Config          map[string]interface{} `json:"config"`
	MaxRetries      int                    `json:"max_retries"`
	RetryInterval   int                    `json:"retry_interval"`
}

// UpdateTaskInput applies a partial update. Nil fields stay untouched; a
// pointer to the zero value clears (empty cron, zero interval).
type UpdateTaskInput struct {
	Name            *string                `json:"name"`
	Description     *string                `json:"description"`
	TaskType        *models.TaskType       `json:"task_type"`
	CronExpression  *string                `json:"cron_expression"`
	IntervalSeconds *int                   `json:"interval_seconds"`
	Config          map[string]interface{} `json:"config"`
	MaxRetries      *int                   `json:"max_retries"`
	RetryInterval   *int                   `json:"retry_interval"`
}

// TaskStatusView is a task definition joined with its live scheduling
// state and newest execution.
type TaskStatusView struct {
	Task            models.ScheduledTask      `json:"task"`
	ScheduleStatus  models.TaskScheduleStatus `json:"schedule_status"`
	Job             models.JobStatus          `json:"job"`
	LatestExecution *models.TaskExecution     `json:"latest_execution,omitempty"`
}

// TaskService fronts every task operation: definition CRUD with
// validation, the enable/pause lifecycle kept in step with the scheduler
// manager, manual triggering, and status assembly.
type TaskService struct {
	tasks      repository.TaskRepository
	executions repository.ExecutionRepository
	manager    *scheduler.Manager
	engine     *Engine
	registry   *executors.Registry
	logger     zerolog.Logger
}

func NewTaskService(
	tasks repository.TaskRepository,
	executions repository.ExecutionRepository,
	manager *scheduler.Manager,
	engine *Engine,
	registry *executors.Registry,
	logger zerolog.Logger,
) *TaskService {
	return &TaskService{
		tasks:      tasks,
		executions: executions,
		manager:    manager,
		engine:     engine,
		registry:   registry,
		logger:     logger.With().Str("component", "task_service").Logger(),
	}
}

// Bootstrap prepares the service after a restart: stale RUNNING rows are
// swept, then every stored task is registered with the scheduler.
func (s *TaskService) Bootstrap(ctx context.Context) error {
	if err := s.engine.SweepStale(ctx); err != nil {
		return err
	}
	tasks, err := s.tasks.List(ctx, repository.TaskFilter{})
	if err != nil {
		return err
	}
	s.manager.LoadAll(tasks)
	return nil
}

func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*models.ScheduledTask, error) {
	task := &models.ScheduledTask{
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		JobID:           uuid.NewString(),
		TaskType:        in.TaskType,
		CronExpression:  strings.TrimSpace(in.CronExpression),
		IntervalSeconds: in.IntervalSeconds,
		Enabled:         in.Enabled == nil || *in.Enabled,
		Paused:          in.Paused,
		MaxRetries:      in.MaxRetries,
		RetryInterval:   in.RetryInterval,
	}
	task.SetConfig(in.Config)

	if err := s.validateDefinition(ctx, task); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, task.Name); err != nil {
		return nil, err
	}

	err := s.tasks.Transaction(ctx, func(tx repository.TaskRepository) error {
		if err := tx.Create(ctx, task); err != nil {
			return err
		}
		if task.Enabled {
			return s.manager.Register(task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Uint("task_id", task.ID).Str("task", task.Name).
		Str("type", string(task.TaskType)).Msg("task created")
	return task, nil
}

// Update changes a task definition in place. The job id survives updates;
// only deleting and recreating a task produces a new one.
func (s *TaskService) Update(ctx context.Context, id uint, in UpdateTaskInput) (*models.ScheduledTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		newName := strings.TrimSpace(*in.Name)
		if newName != task.Name {
			if err := s.checkNameFree(ctx, newName); err != nil {
				return nil, err
			}
			task.Name = newName
		}
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.TaskType != nil {
		task.TaskType = *in.TaskType
	}
	if in.CronExpression != nil {
		task.CronExpression = strings.TrimSpace(*in.CronExpression)
	}
	if in.IntervalSeconds != nil {
		task.IntervalSeconds = *in.IntervalSeconds
	}
	if in.Config != nil {
		task.SetConfig(in.Config)
	}
	if in.MaxRetries != nil {
		task.MaxRetries = *in.MaxRetries
	}
	if in.RetryInterval != nil {
		task.RetryInterval = *in.RetryInterval
	}

	if err := s.validateDefinition(ctx, task); err != nil {
		return nil, err
	}

	err = s.tasks.Transaction(ctx, func(tx repository.TaskRepository) error {
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		s.manager.Deregister(task.JobID)
		if task.Enabled {
			return s.manager.Register(task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Uint("task_id", task.ID).Str("task", task.Name).Msg("task updated")
	return task, nil
}

// Delete removes the definition and its registration. Execution history is
// kept; a later task created under the same name gets a fresh job id and
// does not inherit it.
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	err = s.tasks.Transaction(ctx, func(tx repository.TaskRepository) error {
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		s.manager.Deregister(task.JobID)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Uint("task_id", id).Str("task", task.Name).Msg("task deleted")
	return nil
}

// SetEnabled flips the enabled flag and keeps the scheduler in step inside
// one transaction. Disabling never interrupts executions already in
// flight.
func (s *TaskService) SetEnabled(ctx context.Context, id uint, enabled bool) (*models.ScheduledTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Enabled == enabled {
		return task, nil
	}
	task.Enabled = enabled

	err = s.tasks.Transaction(ctx, func(tx repository.TaskRepository) error {
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		if enabled {
			return s.manager.Register(task)
		}
		s.manager.Deregister(task.JobID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// SetPaused flips the paused flag. Tasks without a live registration (not
// enabled, MANUAL, no schedule) only change the stored flag.
func (s *TaskService) SetPaused(ctx context.Context, id uint, paused bool) (*models.ScheduledTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Paused == paused {
		return task, nil
	}
	task.Paused = paused

	err = s.tasks.Transaction(ctx, func(tx repository.TaskRepository) error {
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		if !task.Enabled {
			return nil
		}
		var merr error
		if paused {
			merr = s.manager.Pause(task.JobID)
		} else {
			merr = s.manager.Resume(task.JobID)
		}
		if models.IsNotFoundError(merr) {
			return nil
		}
		return merr
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Trigger starts a manual run. Works for every task type, paused tasks
// included; only disabled tasks are refused.
func (s *TaskService) Trigger(ctx context.Context, id uint) (*models.TaskExecution, error) {
	return s.engine.TriggerManual(ctx, id)
}

// TriggerJob fires a live timer registration ahead of schedule. The error
// reports whether the fire was scheduled, never how the run went.
func (s *TaskService) TriggerJob(jobID string) error {
	return s.manager.TriggerNow(jobID)
}

func (s *TaskService) Get(ctx context.Context, id uint) (*models.ScheduledTask, error) {
	return s.tasks.GetByID(ctx, id)
}

// Status joins one task with its live job state and newest execution.
func (s *TaskService) Status(ctx context.Context, id uint) (*TaskStatusView, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	latest, err := s.executions.LatestByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	view := s.buildStatus(task, latest)
	return &view, nil
}

// List returns every matching task with its status, resolving the newest
// executions in one query.
func (s *TaskService) List(ctx context.Context, filter repository.TaskFilter) ([]TaskStatusView, error) {
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].ID)
	}
	latest, err := s.executions.LatestPerTask(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]TaskStatusView, 0, len(tasks))
	for i := range tasks {
		views = append(views, s.buildStatus(&tasks[i], latest[tasks[i].ID]))
	}
	return views, nil
}

func (s *TaskService) buildStatus(task *models.ScheduledTask, latest *models.TaskExecution) TaskStatusView {
	job := s.manager.JobStatus(task.JobID)
	if s.engine.PendingRuns(task.ID) > 0 {
		job.Pending = true
	}
	return TaskStatusView{
		Task:            *task,
		ScheduleStatus:  models.ResolveScheduleStatus(task.Enabled, task.Paused, job, latest),
		Job:             job,
		LatestExecution: latest,
	}
}

// Executions pages through a task's run history, newest first.
func (s *TaskService) Executions(ctx context.Context, taskID uint, limit, offset int) ([]models.TaskExecution, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.executions.ListByTask(ctx, taskID, limit, offset)
}

func (s *TaskService) Execution(ctx context.Context, id uint) (*models.TaskExecution, error) {
	return s.executions.GetByID(ctx, id)
}

// Terminate stops an execution from the outside; it ends TERMINATED and is
// never retried.
func (s *TaskService) Terminate(ctx context.Context, executionID uint) error {
	return s.engine.TerminateExecution(ctx, executionID)
}

// Stats aggregates execution history, for one task or globally.
func (s *TaskService) Stats(ctx context.Context, taskID *uint) (*repository.ExecutionStats, error) {
	if taskID != nil {
		if _, err := s.tasks.GetByID(ctx, *taskID); err != nil {
			return nil, err
		}
	}
	return s.executions.Stats(ctx, taskID)
}

// ValidateWorkflowConfig dry-runs workflow validation against a config
// document without touching any stored task.
func (s *TaskService) ValidateWorkflowConfig(ctx context.Context, cfg map[string]interface{}) error {
	executor, err := s.registry.Get(models.TaskTypeWorkflow)
	if err != nil {
		return err
	}
	validator, ok := executor.(executors.ConfigValidator)
	if !ok {
		return models.NewConfigurationError("workflow executor cannot validate configs")
	}
	probe := &models.ScheduledTask{TaskType: models.TaskTypeWorkflow}
	probe.SetConfig(cfg)
	return validator.ValidateConfig(ctx, probe)
}

// ReloadAll rebuilds every scheduler registration from the database.
// Exposed for operators after fixing rows out of band.
func (s *TaskService) ReloadAll(ctx context.Context) error {
	tasks, err := s.tasks.List(ctx, repository.TaskFilter{})
	if err != nil {
		return err
	}
	s.manager.ReloadAll(tasks)
	return nil
}

func (s *TaskService) checkNameFree(ctx context.Context, name string) error {
	existing, err := s.tasks.GetByName(ctx, name)
	if err != nil {
		if models.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	if existing != nil {
		return models.NewConfigurationError("task name %q is already in use", name)
	}
	return nil
}

// validateDefinition enforces the scheduling rules: cron and interval are
// mutually exclusive, MANUAL tasks carry neither, cron expressions must
// parse, and the executor for the task type accepts the config.
func (s *TaskService) validateDefinition(ctx context.Context, task *models.ScheduledTask) error {
	if task.Name == "" {
		return models.NewConfigurationError("task name is required")
	}
	if !task.TaskType.Valid() {
		return models.NewConfigurationError("unknown task type %q", task.TaskType)
	}
	if task.IntervalSeconds < 0 {
		return models.NewConfigurationError("interval_seconds cannot be negative")
	}
	if task.MaxRetries < 0 {
		return models.NewConfigurationError("max_retries cannot be negative")
	}
	if task.RetryInterval < 0 {
		return models.NewConfigurationError("retry_interval cannot be negative")
	}

	hasCron := task.CronExpression != ""
	hasInterval := task.IntervalSeconds > 0
	if hasCron && hasInterval {
		return models.NewConfigurationError("a task takes a cron expression or an interval, not both")
	}
	if task.TaskType == models.TaskTypeManual && (hasCron || hasInterval) {
		return models.NewConfigurationError("MANUAL tasks cannot carry a schedule")
	}
	if hasCron {
		if _, err := cron.ParseStandard(task.CronExpression); err != nil {
			return models.NewConfigurationError("invalid cron expression %q: %v", task.CronExpression, err)
		}
	}

	executor, err := s.registry.Get(task.TaskType)
	if err != nil {
		return err
	}
	if validator, ok := executor.(executors.ConfigValidator); ok {
		if err := validator.ValidateConfig(ctx, task); err != nil {
			return err
		}
	}
	return nil
}
