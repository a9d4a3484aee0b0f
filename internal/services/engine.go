// Package services holds the application core: the execution engine that
// runs task attempts on a bounded worker pool, and the task service that
// fronts persistence, validation, and the scheduler manager.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"task-scheduler-service/internal/events"
	"task-scheduler-service/internal/executors"
	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
	"task-scheduler-service/internal/telemetry"
)

// ErrShuttingDown rejects new work while the engine drains.
var ErrShuttingDown = errors.New("engine is shutting down")

// inflightRun tracks one running attempt so it can be terminated from the
// outside.
type inflightRun struct {
	cancel     context.CancelFunc
	terminated bool
}

// Engine owns every execution attempt. Scheduled fires arrive through
// Dispatch and queue for a worker slot; manual triggers create their row
// synchronously and then queue; workflow members run inline on the
// workflow's own slot.
type Engine struct {
	tasks      repository.TaskRepository
	executions repository.ExecutionRepository
	registry   *executors.Registry
	publisher  events.Publisher
	clock      clockwork.Clock
	logger     zerolog.Logger
	slots      *semaphore.Weighted

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	inflight map[uint]*inflightRun
	pending  map[uint]int
	draining bool
	wg       sync.WaitGroup
}

// NewEngine builds a ready engine. maxConcurrent bounds the worker pool; a
// nil clock means real time.
func NewEngine(
	tasks repository.TaskRepository,
	executions repository.ExecutionRepository,
	registry *executors.Registry,
	publisher events.Publisher,
	maxConcurrent int,
	clock clockwork.Clock,
	logger zerolog.Logger,
) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Engine{
		tasks:      tasks,
		executions: executions,
		registry:   registry,
		publisher:  publisher,
		clock:      clock,
		logger:     logger.With().Str("component", "engine").Logger(),
		slots:      semaphore.NewWeighted(int64(maxConcurrent)),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		inflight:   make(map[uint]*inflightRun),
		pending:    make(map[uint]int),
	}
}

// Dispatch queues a run for the task. It returns immediately; the run waits
// for a worker slot in its own goroutine. The scheduler manager calls this
// from the timer loop, so blocking here would stall every other job.
func (e *Engine) Dispatch(taskID uint, jobID string, trigger models.TriggerType) {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		e.logger.Warn().Uint("task_id", taskID).Msg("dispatch dropped during shutdown")
		return
	}
	e.pending[taskID]++
	e.wg.Add(1)
	e.mu.Unlock()
	telemetry.ExecutionsQueued.Inc()

	go func() {
		defer e.wg.Done()
		acquired := e.slots.Acquire(e.baseCtx, 1) == nil
		e.decPending(taskID)
		telemetry.ExecutionsQueued.Dec()
		if !acquired {
			return
		}
		defer e.slots.Release(1)

		task, err := e.tasks.GetByID(e.baseCtx, taskID)
		if err != nil {
			e.logger.Warn().Err(err).Uint("task_id", taskID).Str("job_id", jobID).
				Msg("dispatched task no longer exists")
			return
		}
		if !task.Enabled || task.Paused {
			e.logger.Debug().Uint("task_id", taskID).Str("task", task.Name).
				Msg("skipping fire for inactive task")
			return
		}

		if _, err := e.runAttempts(e.baseCtx, task, trigger, nil); err != nil {
			e.logger.Error().Err(err).Uint("task_id", taskID).Str("task", task.Name).
				Msg("scheduled run rejected")
		}
	}()
}

// TriggerManual runs a task on demand. The first execution row is created
// before this returns so the caller can watch it; the run itself proceeds
// asynchronously on the worker pool. Validation failures surface here and
// leave no execution record.
func (e *Engine) TriggerManual(ctx context.Context, taskID uint) (*models.TaskExecution, error) {
	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Enabled {
		return nil, models.NewConfigurationError("task %s is disabled", task.Name)
	}
	if err := e.preflight(ctx, task); err != nil {
		return nil, err
	}

	exec := e.newExecution(task, models.TriggerManual, 0)
	if err := e.executions.Create(ctx, exec); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		exec.Finish(models.ExecutionTerminated, e.clock.Now())
		exec.ErrorMessage = ErrShuttingDown.Error()
		_ = e.executions.Finalize(context.Background(), exec)
		return nil, ErrShuttingDown
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		if err := e.slots.Acquire(e.baseCtx, 1); err != nil {
			exec.Finish(models.ExecutionTerminated, e.clock.Now())
			exec.ErrorMessage = ErrShuttingDown.Error()
			_ = e.executions.Finalize(context.Background(), exec)
			return
		}
		defer e.slots.Release(1)
		if _, err := e.runAttempts(e.baseCtx, task, models.TriggerManual, exec); err != nil {
			e.logger.Error().Err(err).Uint("task_id", task.ID).Msg("manual run failed to start")
		}
	}()

	return exec, nil
}

// RunMember executes one workflow member to completion, retries included.
// It runs inline on the caller's goroutine: the workflow already holds a
// worker slot, and borrowing another one per member could deadlock a full
// pool.
func (e *Engine) RunMember(ctx context.Context, task *models.ScheduledTask) (*models.TaskExecution, error) {
	if !task.Enabled {
		return nil, models.NewConfigurationError("task %s is disabled", task.Name)
	}
	return e.runAttempts(ctx, task, models.TriggerWorkflow, nil)
}

// TerminateExecution stops a run from the outside. In-flight attempts get
// their context cancelled and finish as TERMINATED; rows that are recorded
// as running but have no live attempt (left over from a crash) are
// finalized directly.
func (e *Engine) TerminateExecution(ctx context.Context, executionID uint) error {
	e.mu.Lock()
	run, live := e.inflight[executionID]
	if live {
		run.terminated = true
	}
	e.mu.Unlock()

	if live {
		run.cancel()
		e.logger.Info().Uint("execution_id", executionID).Msg("termination requested")
		return nil
	}

	exec, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}
	if exec.Status.IsTerminal() {
		return repository.ErrAlreadyFinal
	}
	exec.Finish(models.ExecutionTerminated, e.clock.Now())
	exec.ErrorMessage = "terminated by operator"
	if err := e.executions.Finalize(ctx, exec); err != nil {
		return err
	}
	e.publish(events.TypeExecutionTerminated, exec)
	return nil
}

// PendingRuns reports dispatched fires that have not started yet. The task
// service folds this into the job status.
func (e *Engine) PendingRuns(taskID uint) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending[taskID]
}

// SweepStale finalizes RUNNING rows left behind by a previous process.
// Called once on startup, before the scheduler begins firing.
func (e *Engine) SweepStale(ctx context.Context) error {
	n, err := e.executions.SweepRunning(ctx, "terminated by service restart")
	if err != nil {
		return err
	}
	if n > 0 {
		e.logger.Warn().Int64("count", n).Msg("swept stale running executions")
	}
	return nil
}

// Shutdown drains the engine: no new work is accepted, queued and running
// attempts get until ctx expires to finish, then their contexts are cut.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	e.draining = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn().Msg("forcing in-flight executions to stop")
		e.baseCancel()
		<-done
	}
	e.baseCancel()
	e.logger.Info().Msg("engine stopped")
}

func (e *Engine) decPending(taskID uint) {
	e.mu.Lock()
	if e.pending[taskID] > 1 {
		e.pending[taskID]--
	} else {
		delete(e.pending, taskID)
	}
	e.mu.Unlock()
}

// preflight resolves the executor and lets it reject the config before any
// execution row exists. A workflow with an invalid definition therefore
// never records a RUNNING execution.
func (e *Engine) preflight(ctx context.Context, task *models.ScheduledTask) error {
	executor, err := e.registry.Get(task.TaskType)
	if err != nil {
		return err
	}
	if v, ok := executor.(executors.ConfigValidator); ok {
		if err := v.ValidateConfig(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) newExecution(task *models.ScheduledTask, trigger models.TriggerType, attempt int) *models.TaskExecution {
	return &models.TaskExecution{
		TaskID:     task.ID,
		TaskName:   task.Name,
		Status:     models.ExecutionRunning,
		Trigger:    trigger,
		StartTime:  e.clock.Now(),
		RetryCount: attempt,
	}
}

// runAttempts drives the retry loop for one logical run. first, when
// non-nil, is the already-persisted row for attempt zero. The returned
// error covers only failures to run at all (unknown executor, invalid
// config, storage trouble); attempt outcomes live on the returned row.
func (e *Engine) runAttempts(ctx context.Context, task *models.ScheduledTask, trigger models.TriggerType, first *models.TaskExecution) (*models.TaskExecution, error) {
	executor, err := e.registry.Get(task.TaskType)
	if err != nil {
		return nil, err
	}
	if first == nil {
		if err := e.preflight(ctx, task); err != nil {
			return nil, err
		}
	}

	retryWait := time.Duration(task.RetryInterval) * time.Second
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryWait), uint64(task.MaxRetries))

	attempt := 0
	exec := first
	for {
		if exec == nil {
			exec = e.newExecution(task, trigger, attempt)
			if err := e.executions.Create(ctx, exec); err != nil {
				if attempt == 0 {
					return nil, err
				}
				e.logger.Error().Err(err).Uint("task_id", task.ID).Int("attempt", attempt).
					Msg("failed to record retry attempt")
				return exec, nil
			}
		}

		runErr := e.executeAttempt(ctx, task, exec, executor)
		if runErr == nil || !retryable(runErr) || ctx.Err() != nil {
			return exec, nil
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			e.logger.Info().Uint("task_id", task.ID).Str("task", task.Name).
				Int("attempts", attempt+1).Msg("retries exhausted")
			return exec, nil
		}

		telemetry.RetriesTotal.WithLabelValues(string(task.TaskType)).Inc()
		e.publish(events.TypeRetryScheduled, exec)
		e.logger.Info().Uint("task_id", task.ID).Str("task", task.Name).
			Int("next_attempt", attempt+1).Dur("wait", wait).Msg("scheduling retry")

		if wait > 0 {
			select {
			case <-ctx.Done():
				return exec, nil
			case <-e.clock.After(wait):
			}
		}

		attempt++
		trigger = models.TriggerRetry
		exec = nil
	}
}

// executeAttempt runs one persisted attempt and finalizes its row exactly
// once. The returned error is the raw executor outcome used for the retry
// decision.
func (e *Engine) executeAttempt(ctx context.Context, task *models.ScheduledTask, exec *models.TaskExecution, executor executors.Executor) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.inflight[exec.ID] = &inflightRun{cancel: cancel}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, exec.ID)
		e.mu.Unlock()
	}()

	e.publish(events.TypeExecutionStarted, exec)
	telemetry.ExecutionsStarted.WithLabelValues(string(task.TaskType), string(exec.Trigger)).Inc()
	telemetry.ExecutionsInFlight.Inc()
	defer telemetry.ExecutionsInFlight.Dec()

	e.logger.Info().Uint("task_id", task.ID).Str("task", task.Name).
		Uint("execution_id", exec.ID).Str("trigger", string(exec.Trigger)).
		Int("retry_count", exec.RetryCount).Msg("execution started")

	result, runErr := executor.Execute(runCtx, &executors.ExecutionInput{Task: task, Execution: exec})

	e.mu.Lock()
	terminated := e.inflight[exec.ID] != nil && e.inflight[exec.ID].terminated
	e.mu.Unlock()

	var status models.ExecutionStatus
	var eventType string
	switch {
	case terminated || models.IsTerminationError(runErr):
		status = models.ExecutionTerminated
		eventType = events.TypeExecutionTerminated
		if runErr == nil {
			runErr = models.NewTerminationError("terminated by request")
		}
	case runErr != nil:
		status = models.ExecutionFailed
		eventType = events.TypeExecutionFailed
	default:
		status = models.ExecutionSuccess
		eventType = events.TypeExecutionSucceeded
	}

	exec.Finish(status, e.clock.Now())
	exec.SetResult(result)
	if runErr != nil {
		exec.ErrorMessage = runErr.Error()
	}

	// The completion record must land even when the run context was
	// cancelled, so the write gets a fresh context.
	finCtx := context.Background()
	if err := e.executions.Finalize(finCtx, exec); err != nil {
		if errors.Is(err, repository.ErrAlreadyFinal) {
			// Lost the race against an external termination; the stored row
			// wins.
			if row, gerr := e.executions.GetByID(finCtx, exec.ID); gerr == nil {
				*exec = *row
			}
			return models.NewTerminationError("terminated externally")
		}
		e.logger.Error().Err(err).Uint("execution_id", exec.ID).Msg("failed to finalize execution")
		return runErr
	}

	e.publish(eventType, exec)
	telemetry.ExecutionsFinished.WithLabelValues(string(task.TaskType), string(status)).Inc()
	telemetry.ExecutionDurationSeconds.WithLabelValues(string(task.TaskType)).Observe(exec.DurationSeconds)

	evt := e.logger.Info()
	if status != models.ExecutionSuccess {
		evt = e.logger.Warn()
	}
	evt.Uint("task_id", task.ID).Str("task", task.Name).
		Uint("execution_id", exec.ID).Str("status", string(status)).
		Float64("duration_seconds", exec.DurationSeconds).Msg("execution finished")

	return runErr
}

// retryable reports whether an attempt failure should consume a retry.
// Configuration problems will not fix themselves and terminations are
// deliberate, so only genuine execution failures retry.
func retryable(err error) bool {
	return err != nil && !models.IsConfigurationError(err) && !models.IsTerminationError(err)
}

func (e *Engine) publish(eventType string, exec *models.TaskExecution) {
	_ = e.publisher.PublishExecutionEvent(e.baseCtx, events.FromExecution(eventType, exec, e.clock.Now()))
}

var _ executors.MemberRunner = (*Engine)(nil)
