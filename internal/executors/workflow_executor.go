package executors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
	"task-scheduler-service/pkg/validation"
)

var workflowSchema = validation.MustCompileSchema(`{
	"type": "object",
	"properties": {
		"workflow_type": {"type": "string", "enum": ["serial", "parallel"]},
		"tasks": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"task_id": {"type": "integer", "minimum": 1},
					"name": {"type": "string"},
					"dependencies": {"type": "array", "items": {"type": "integer", "minimum": 1}}
				},
				"required": ["task_id"]
			}
		},
		"on_failure": {"type": "string", "enum": ["stop", "continue"]}
	},
	"required": ["workflow_type", "tasks"]
}`)

const (
	memberStatusPending = "pending"
	memberStatusSuccess = "success"
	memberStatusFailed  = "failed"
	memberStatusSkipped = "skipped"
)

// WorkflowExecutor orchestrates WORKFLOW tasks. Members run through the
// MemberRunner so each gets its own execution rows and retry policy; the
// workflow's own execution aggregates their outcomes.
type WorkflowExecutor struct {
	tasks  repository.TaskRepository
	logger zerolog.Logger

	mu     sync.RWMutex
	runner MemberRunner
}

func NewWorkflowExecutor(tasks repository.TaskRepository, logger zerolog.Logger) *WorkflowExecutor {
	return &WorkflowExecutor{
		tasks:  tasks,
		logger: logger.With().Str("component", "workflow_executor").Logger(),
	}
}

// SetRunner injects the member runner after construction. The engine that
// implements it is built with the registry this executor is part of, so the
// binding happens as the last wiring step.
func (e *WorkflowExecutor) SetRunner(r MemberRunner) {
	e.mu.Lock()
	e.runner = r
	e.mu.Unlock()
}

func (e *WorkflowExecutor) currentRunner() MemberRunner {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runner
}

func (e *WorkflowExecutor) TaskType() models.TaskType { return models.TaskTypeWorkflow }

// ValidateConfig checks the whole definition without running anything:
// document shape, member existence and enablement, dependency membership,
// nesting, and cycles.
func (e *WorkflowExecutor) ValidateConfig(ctx context.Context, task *models.ScheduledTask) error {
	_, _, err := e.prepare(ctx, task)
	return err
}

func (e *WorkflowExecutor) Execute(ctx context.Context, input *ExecutionInput) (datatypes.JSONMap, error) {
	runner := e.currentRunner()
	if runner == nil {
		return nil, fmt.Errorf("workflow executor has no member runner bound")
	}

	wc, members, err := e.prepare(ctx, input.Task)
	if err != nil {
		return nil, err
	}

	e.logger.Info().Uint("task_id", input.Task.ID).Str("task", input.Task.Name).
		Str("workflow_type", string(wc.WorkflowType)).
		Int("members", len(wc.Tasks)).Msg("workflow starting")

	run := newWorkflowRun(wc, members)
	switch wc.WorkflowType {
	case models.WorkflowSerial:
		e.runSerial(ctx, runner, wc, members, run)
	case models.WorkflowParallel:
		e.runParallel(ctx, runner, wc, members, run)
	}

	result := run.document(wc)
	if ctx.Err() != nil {
		return result, models.NewTerminationError("workflow terminated")
	}
	if failed := run.failedCount(); failed > 0 {
		return result, models.NewExecutionError("workflow finished with %d failed member(s)", failed)
	}
	return result, nil
}

// prepare validates the workflow definition and loads its members.
func (e *WorkflowExecutor) prepare(ctx context.Context, task *models.ScheduledTask) (*models.WorkflowConfig, map[uint]*models.ScheduledTask, error) {
	cfg := task.GetConfig()
	if err := validation.ValidateMap(workflowSchema, cfg); err != nil {
		return nil, nil, models.NewConfigurationError("workflow config invalid: %v", err)
	}
	wc, err := models.DecodeWorkflowConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	memberSet := make(map[uint]bool, len(wc.Tasks))
	for _, m := range wc.Tasks {
		if m.TaskID == task.ID {
			return nil, nil, models.NewConfigurationError("workflow cannot contain itself (task %d)", task.ID)
		}
		if memberSet[m.TaskID] {
			return nil, nil, models.NewConfigurationError("duplicate workflow member %d", m.TaskID)
		}
		memberSet[m.TaskID] = true
	}
	for _, m := range wc.Tasks {
		for _, dep := range m.Dependencies {
			if !memberSet[dep] {
				return nil, nil, models.NewConfigurationError(
					"member %d depends on task %d, which is not part of the workflow", m.TaskID, dep)
			}
		}
	}
	if err := detectCycle(wc); err != nil {
		return nil, nil, err
	}

	members := make(map[uint]*models.ScheduledTask, len(wc.Tasks))
	for _, m := range wc.Tasks {
		member, err := e.tasks.GetByID(ctx, m.TaskID)
		if err != nil {
			if models.IsNotFoundError(err) {
				return nil, nil, models.NewConfigurationError("workflow member %d does not exist", m.TaskID)
			}
			return nil, nil, err
		}
		if !member.Enabled {
			return nil, nil, models.NewConfigurationError("workflow member %d (%s) is disabled", member.ID, member.Name)
		}
		if member.TaskType == models.TaskTypeWorkflow {
			return nil, nil, models.NewConfigurationError(
				"workflow member %d (%s) is itself a workflow; nesting is not supported", member.ID, member.Name)
		}
		members[m.TaskID] = member
	}
	return wc, members, nil
}

// detectCycle runs Kahn's algorithm over the dependency edges. Members left
// with a positive indegree are part of at least one cycle.
func detectCycle(wc *models.WorkflowConfig) error {
	indegree := make(map[uint]int, len(wc.Tasks))
	dependents := make(map[uint][]uint)
	for _, m := range wc.Tasks {
		indegree[m.TaskID] = 0
	}
	for _, m := range wc.Tasks {
		for _, dep := range m.Dependencies {
			dependents[dep] = append(dependents[dep], m.TaskID)
			indegree[m.TaskID]++
		}
	}

	queue := make([]uint, 0, len(wc.Tasks))
	for _, m := range wc.Tasks {
		if indegree[m.TaskID] == 0 {
			queue = append(queue, m.TaskID)
		}
	}
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if processed == len(wc.Tasks) {
		return nil
	}

	var cycle []uint
	for id, deg := range indegree {
		if deg > 0 {
			cycle = append(cycle, id)
		}
	}
	sort.Slice(cycle, func(i, j int) bool { return cycle[i] < cycle[j] })
	return models.NewConfigurationError("workflow dependencies contain a cycle involving tasks %v", cycle)
}

func (e *WorkflowExecutor) runSerial(ctx context.Context, runner MemberRunner, wc *models.WorkflowConfig, members map[uint]*models.ScheduledTask, run *workflowRun) {
	aborted := false
	for _, m := range wc.Tasks {
		if ctx.Err() != nil {
			run.markSkipped(m.TaskID, "workflow terminated")
			continue
		}
		if aborted {
			run.markSkipped(m.TaskID, "aborted after earlier failure")
			continue
		}

		ok := e.runOne(ctx, runner, members[m.TaskID], run)
		if !ok && wc.OnFailure == models.FailurePolicyStop {
			aborted = true
		}
	}
}

func (e *WorkflowExecutor) runParallel(ctx context.Context, runner MemberRunner, wc *models.WorkflowConfig, members map[uint]*models.ScheduledTask, run *workflowRun) {
	indegree := make(map[uint]int, len(wc.Tasks))
	dependents := make(map[uint][]uint)
	for _, m := range wc.Tasks {
		indegree[m.TaskID] = len(m.Dependencies)
		for _, dep := range m.Dependencies {
			dependents[dep] = append(dependents[dep], m.TaskID)
		}
	}

	type memberDone struct {
		id uint
		ok bool
	}
	done := make(chan memberDone)
	launched := make(map[uint]bool, len(wc.Tasks))
	settled := make(map[uint]bool, len(wc.Tasks))
	aborted := false
	inflight := 0

	launch := func(id uint) {
		launched[id] = true
		inflight++
		member := members[id]
		go func() {
			ok := e.runOne(ctx, runner, member, run)
			done <- memberDone{id: id, ok: ok}
		}()
	}

	// skipFrom marks every not-yet-started transitive dependent of id.
	// A failed dependency blocks descendants under both failure policies.
	var skipFrom func(id uint, reason string)
	skipFrom = func(id uint, reason string) {
		for _, next := range dependents[id] {
			if launched[next] || settled[next] {
				continue
			}
			run.markSkipped(next, reason)
			settled[next] = true
			skipFrom(next, fmt.Sprintf("dependency %d was skipped", next))
		}
	}

	for _, m := range wc.Tasks {
		if indegree[m.TaskID] == 0 {
			launch(m.TaskID)
		}
	}

	// Only this loop touches the bookkeeping maps; member goroutines report
	// through the channel.
	for inflight > 0 {
		d := <-done
		inflight--
		settled[d.id] = true

		if d.ok {
			for _, next := range dependents[d.id] {
				if launched[next] || settled[next] {
					continue
				}
				indegree[next]--
				if indegree[next] == 0 && !aborted && ctx.Err() == nil {
					launch(next)
				}
			}
			continue
		}

		skipFrom(d.id, fmt.Sprintf("dependency %d failed", d.id))
		if wc.OnFailure == models.FailurePolicyStop {
			aborted = true
		}
	}

	// Whatever never launched was stranded by an abort or termination.
	for _, m := range wc.Tasks {
		if launched[m.TaskID] || settled[m.TaskID] {
			continue
		}
		switch {
		case ctx.Err() != nil:
			run.markSkipped(m.TaskID, "workflow terminated")
		case aborted:
			run.markSkipped(m.TaskID, "aborted after earlier failure")
		default:
			run.markSkipped(m.TaskID, "dependencies never completed")
		}
	}
}

// runOne executes a single member and records its outcome. Returns whether
// the member succeeded.
func (e *WorkflowExecutor) runOne(ctx context.Context, runner MemberRunner, member *models.ScheduledTask, run *workflowRun) bool {
	exec, err := runner.RunMember(ctx, member)
	switch {
	case err != nil:
		e.logger.Warn().Err(err).Uint("member_id", member.ID).Msg("workflow member failed to run")
		run.markFailed(member.ID, 0, err.Error())
		return false
	case exec.Status.IsSuccess():
		run.markSuccess(member.ID, exec.ID)
		return true
	default:
		run.markFailed(member.ID, exec.ID, exec.ErrorMessage)
		return false
	}
}

type memberResult struct {
	taskID      uint
	name        string
	status      string
	executionID uint
	errMsg      string
	reason      string
}

// workflowRun collects member outcomes. Parallel members report from their
// own goroutines, hence the mutex.
type workflowRun struct {
	mu      sync.Mutex
	order   []uint
	results map[uint]*memberResult
}

func newWorkflowRun(wc *models.WorkflowConfig, members map[uint]*models.ScheduledTask) *workflowRun {
	r := &workflowRun{results: make(map[uint]*memberResult, len(wc.Tasks))}
	for _, m := range wc.Tasks {
		name := m.Name
		if member, ok := members[m.TaskID]; ok {
			name = member.Name
		}
		r.order = append(r.order, m.TaskID)
		r.results[m.TaskID] = &memberResult{taskID: m.TaskID, name: name, status: memberStatusPending}
	}
	return r
}

func (r *workflowRun) markSuccess(id uint, execID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.results[id]
	res.status = memberStatusSuccess
	res.executionID = execID
}

func (r *workflowRun) markFailed(id uint, execID uint, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.results[id]
	res.status = memberStatusFailed
	res.executionID = execID
	res.errMsg = msg
}

func (r *workflowRun) markSkipped(id uint, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.results[id]
	res.status = memberStatusSkipped
	res.reason = reason
}

func (r *workflowRun) failedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.results {
		if res.status == memberStatusFailed {
			n++
		}
	}
	return n
}

// document renders the aggregate result stored on the workflow execution.
func (r *workflowRun) document(wc *models.WorkflowConfig) datatypes.JSONMap {
	r.mu.Lock()
	defer r.mu.Unlock()

	memberDocs := make([]interface{}, 0, len(r.order))
	var succeeded, failed, skipped int
	for _, id := range r.order {
		res := r.results[id]
		doc := map[string]interface{}{
			"task_id": res.taskID,
			"status":  res.status,
		}
		if res.name != "" {
			doc["name"] = res.name
		}
		if res.executionID != 0 {
			doc["execution_id"] = res.executionID
		}
		if res.errMsg != "" {
			doc["error"] = res.errMsg
		}
		if res.reason != "" {
			doc["reason"] = res.reason
		}
		switch res.status {
		case memberStatusSuccess:
			succeeded++
		case memberStatusFailed:
			failed++
		case memberStatusSkipped:
			skipped++
		}
		memberDocs = append(memberDocs, doc)
	}

	return datatypes.JSONMap{
		"workflow_type": string(wc.WorkflowType),
		"on_failure":    string(wc.OnFailure),
		"members":       memberDocs,
		"succeeded":     succeeded,
		"failed":        failed,
		"skipped":       skipped,
	}
}

var (
	_ Executor        = (*WorkflowExecutor)(nil)
	_ ConfigValidator = (*WorkflowExecutor)(nil)
)
