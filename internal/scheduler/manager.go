// Package scheduler owns the live timer registrations. It wraps gocron and
// knows nothing about executors or persistence: due fires are handed to a
// DispatchFunc and everything else is bookkeeping around job handles.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/telemetry"
)

const registrationTag = "scheduled_task"

// DispatchFunc receives due fires. Implementations must not block: the
// engine queues the run and returns immediately so one slow task cannot
// stall the timer loop.
type DispatchFunc func(taskID uint, jobID string, trigger models.TriggerType)

// entry retains enough of the task definition to re-create the gocron job
// after a pause.
type entry struct {
	taskID   uint
	jobID    string
	taskName string
	cronExpr string
	interval time.Duration
	paused   bool
	job      gocron.Job // nil while paused
}

// Manager keeps the gocron scheduler and the per-task registrations in sync.
// Registrations are keyed by the task's JobID.
type Manager struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	entries   map[string]*entry
	dispatch  DispatchFunc
	clock     clockwork.Clock
	logger    zerolog.Logger
	started   bool
}

// NewManager builds a stopped Manager. A nil clock means real time; tests
// inject a fake one.
func NewManager(dispatch DispatchFunc, clock clockwork.Clock, logger zerolog.Logger) (*Manager, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Manager{
		scheduler: s,
		entries:   make(map[string]*entry),
		dispatch:  dispatch,
		clock:     clock,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start begins firing registered jobs.
func (m *Manager) Start() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	m.scheduler.Start()
	m.logger.Info().Msg("scheduler started")
}

// Shutdown stops the timer loop. Registrations are not persisted; LoadAll
// rebuilds them on the next start.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutting down gocron scheduler: %w", err)
	}
	m.logger.Info().Msg("scheduler stopped")
	return nil
}

// Register creates or replaces the timer registration for a task. Tasks
// without a schedule (including every MANUAL task) are skipped. A paused
// task keeps its registration entry but gets no live gocron job.
func (m *Manager) Register(task *models.ScheduledTask) error {
	if task.TaskType == models.TaskTypeManual || !task.HasSchedule() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Upsert: drop any previous job for this registration first.
	m.scheduler.RemoveByTags(jobIDTag(task.JobID))

	e := &entry{
		taskID:   task.ID,
		jobID:    task.JobID,
		taskName: task.Name,
		cronExpr: task.CronExpression,
		interval: time.Duration(task.IntervalSeconds) * time.Second,
		paused:   task.Paused,
	}

	if !e.paused {
		job, err := m.newJobLocked(e)
		if err != nil {
			return err
		}
		e.job = job
	}
	m.entries[task.JobID] = e

	m.observeJobCount()

	evt := m.logger.Info().
		Uint("task_id", task.ID).
		Str("job_id", task.JobID).
		Str("task", task.Name)
	if e.paused {
		evt.Msg("registered paused task")
	} else if next, err := e.job.NextRun(); err == nil {
		evt.Time("next_run", next).Msg("registered task")
	} else {
		evt.Msg("registered task")
	}
	return nil
}

func (m *Manager) observeJobCount() {
	telemetry.ScheduledJobs.Set(float64(len(m.scheduler.Jobs())))
}

func (m *Manager) newJobLocked(e *entry) (gocron.Job, error) {
	var jobDef gocron.JobDefinition
	switch {
	case e.cronExpr != "":
		jobDef = gocron.CronJob(e.cronExpr, false)
	case e.interval > 0:
		jobDef = gocron.DurationJob(e.interval)
	default:
		return nil, fmt.Errorf("registration %s has no schedule", e.jobID)
	}

	job, err := m.scheduler.NewJob(
		jobDef,
		gocron.NewTask(m.fire, e.taskID, e.jobID),
		gocron.WithName(fmt.Sprintf("task_%d", e.taskID)),
		gocron.WithTags(registrationTag, jobIDTag(e.jobID)),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling task %d (%s): %w", e.taskID, e.taskName, err)
	}
	return job, nil
}

func (m *Manager) fire(taskID uint, jobID string) {
	if m.dispatch != nil {
		m.dispatch(taskID, jobID, models.TriggerScheduled)
	}
}

// Deregister removes a registration. Unknown job ids are a no-op.
func (m *Manager) Deregister(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[jobID]; !ok {
		return
	}
	m.scheduler.RemoveByTags(jobIDTag(jobID))
	delete(m.entries, jobID)
	m.observeJobCount()
	m.logger.Info().Str("job_id", jobID).Msg("deregistered task")
}

// Pause stops firing without dropping the registration.
func (m *Manager) Pause(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[jobID]
	if !ok {
		return models.NewNotFoundError("job", jobID)
	}
	if e.paused {
		return nil
	}
	m.scheduler.RemoveByTags(jobIDTag(jobID))
	e.paused = true
	e.job = nil
	m.observeJobCount()
	m.logger.Info().Str("job_id", jobID).Str("task", e.taskName).Msg("paused task")
	return nil
}

// Resume re-creates the gocron job from the retained definition.
func (m *Manager) Resume(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[jobID]
	if !ok {
		return models.NewNotFoundError("job", jobID)
	}
	if !e.paused {
		return nil
	}
	job, err := m.newJobLocked(e)
	if err != nil {
		return err
	}
	e.paused = false
	e.job = job
	m.observeJobCount()
	m.logger.Info().Str("job_id", jobID).Str("task", e.taskName).Msg("resumed task")
	return nil
}

// TriggerNow fires a live registration immediately. The returned error only
// reports whether the fire was scheduled, never how the run went.
func (m *Manager) TriggerNow(jobID string) error {
	m.mu.Lock()
	e, ok := m.entries[jobID]
	if !ok {
		m.mu.Unlock()
		return models.NewNotFoundError("job", jobID)
	}
	if e.paused {
		m.mu.Unlock()
		return fmt.Errorf("job %s is paused", jobID)
	}
	job := e.job
	m.mu.Unlock()

	if err := job.RunNow(); err != nil {
		return fmt.Errorf("triggering job %s: %w", jobID, err)
	}
	return nil
}

// JobStatus reports the registration state for a job id. Pending is always
// false here; the engine overlays its queue knowledge.
func (m *Manager) JobStatus(jobID string) models.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[jobID]
	if !ok {
		return models.JobStatus{}
	}

	status := models.JobStatus{Exists: true}
	if e.paused || e.job == nil {
		return status
	}

	next, err := e.job.NextRun()
	if err != nil || next.IsZero() {
		// Nothing left to fire.
		status.IsExpired = true
		return status
	}
	nextCopy := next
	status.NextRunTime = &nextCopy
	if next.Before(m.clock.Now()) {
		status.IsDelayed = true
	}
	return status
}

// LoadAll registers every runnable task. Invalid definitions are logged and
// skipped so one bad row cannot keep the service from starting.
func (m *Manager) LoadAll(tasks []models.ScheduledTask) {
	loaded := 0
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if err := m.Register(task); err != nil {
			m.logger.Error().Err(err).
				Uint("task_id", task.ID).
				Str("task", task.Name).
				Msg("failed to register task")
			continue
		}
		if task.TaskType != models.TaskTypeManual && task.HasSchedule() {
			loaded++
		}
	}
	m.logger.Info().Int("registered", loaded).Int("live_jobs", len(m.scheduler.Jobs())).
		Msg("task registrations loaded")
}

// ReloadAll drops every registration and rebuilds from the given tasks.
func (m *Manager) ReloadAll(tasks []models.ScheduledTask) {
	m.mu.Lock()
	m.scheduler.RemoveByTags(registrationTag)
	m.entries = make(map[string]*entry)
	m.observeJobCount()
	m.mu.Unlock()

	m.logger.Info().Msg("reloading task registrations")
	m.LoadAll(tasks)
}

// Registered returns how many registrations the manager holds, paused ones
// included.
func (m *Manager) Registered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func jobIDTag(jobID string) string {
	return "job_id:" + jobID
}
