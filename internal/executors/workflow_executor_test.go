package executors

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "executors_test.db")
	gormDB, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&models.ScheduledTask{}, &models.TaskExecution{}))
	return gormDB
}

// fakeRunner stands in for the engine. Members listed in fail finish with a
// FAILED execution; members listed in errs never produce one.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []uint
	fail     map[uint]bool
	errs     map[uint]error
	delay    time.Duration
	inflight int
	peak     int
	nextID   uint
}

func (f *fakeRunner) RunMember(ctx context.Context, task *models.ScheduledTask) (*models.TaskExecution, error) {
	f.mu.Lock()
	f.calls = append(f.calls, task.ID)
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.nextID++
	execID := f.nextID
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if err := f.errs[task.ID]; err != nil {
		return nil, err
	}
	exec := &models.TaskExecution{ID: execID, TaskID: task.ID, TaskName: task.Name}
	if f.fail[task.ID] {
		exec.Status = models.ExecutionFailed
		exec.ErrorMessage = "member blew up"
		return exec, nil
	}
	exec.Status = models.ExecutionSuccess
	return exec, nil
}

func (f *fakeRunner) called() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint, len(f.calls))
	copy(out, f.calls)
	return out
}

var _ MemberRunner = (*fakeRunner)(nil)

type workflowFixture struct {
	executor *WorkflowExecutor
	runner   *fakeRunner
	tasks    repository.TaskRepository
}

func setupWorkflow(t *testing.T) *workflowFixture {
	t.Helper()
	tasks := repository.NewTaskRepository(setupTestDB(t))
	runner := &fakeRunner{fail: map[uint]bool{}, errs: map[uint]error{}}
	executor := NewWorkflowExecutor(tasks, zerolog.Nop())
	executor.SetRunner(runner)
	return &workflowFixture{executor: executor, runner: runner, tasks: tasks}
}

func (f *workflowFixture) seedMember(t *testing.T, name string, enabled bool) *models.ScheduledTask {
	t.Helper()
	task := &models.ScheduledTask{
		Name:     name,
		JobID:    "job-" + name,
		TaskType: models.TaskTypeCommon,
		Enabled:  enabled,
		Config:   datatypes.JSONMap{"command": "true"},
	}
	require.NoError(t, f.tasks.Create(context.Background(), task))
	return task
}

func workflowTask(workflowType, onFailure string, members ...map[string]interface{}) *models.ScheduledTask {
	tasks := make([]interface{}, 0, len(members))
	for _, m := range members {
		tasks = append(tasks, m)
	}
	cfg := datatypes.JSONMap{
		"workflow_type": workflowType,
		"tasks":         tasks,
	}
	if onFailure != "" {
		cfg["on_failure"] = onFailure
	}
	return &models.ScheduledTask{
		ID:       9999,
		Name:     "pipeline",
		TaskType: models.TaskTypeWorkflow,
		Enabled:  true,
		Config:   cfg,
	}
}

func member(id uint, deps ...uint) map[string]interface{} {
	m := map[string]interface{}{"task_id": id}
	if len(deps) > 0 {
		depList := make([]interface{}, 0, len(deps))
		for _, d := range deps {
			depList = append(depList, d)
		}
		m["dependencies"] = depList
	}
	return m
}

func memberStatuses(t *testing.T, result datatypes.JSONMap) map[uint]string {
	t.Helper()
	docs, ok := result["members"].([]interface{})
	require.True(t, ok, "result should carry a members list, got %T", result["members"])
	statuses := make(map[uint]string, len(docs))
	for _, raw := range docs {
		doc, ok := raw.(map[string]interface{})
		require.True(t, ok)
		statuses[doc["task_id"].(uint)] = doc["status"].(string)
	}
	return statuses
}

func TestWorkflowExecutor_ValidateConfig_Rejections(t *testing.T) {
	f := setupWorkflow(t)
	ctx := context.Background()

	enabled := f.seedMember(t, "step-a", true)
	disabled := f.seedMember(t, "step-off", false)
	nested := &models.ScheduledTask{
		Name:     "inner-flow",
		JobID:    "job-inner-flow",
		TaskType: models.TaskTypeWorkflow,
		Enabled:  true,
	}
	require.NoError(t, f.tasks.Create(ctx, nested))

	testCases := []struct {
		name     string
		task     *models.ScheduledTask
		contains string
	}{
		{
			name: "missing workflow_type",
			task: &models.ScheduledTask{
				ID: 9999, TaskType: models.TaskTypeWorkflow,
				Config: datatypes.JSONMap{"tasks": []interface{}{member(enabled.ID)}},
			},
			contains: "config invalid",
		},
		{
			name:     "bad workflow_type value",
			task:     workflowTask("pipeline", "", member(enabled.ID)),
			contains: "config invalid",
		},
		{
			name: "empty member list",
			task: &models.ScheduledTask{
				ID: 9999, TaskType: models.TaskTypeWorkflow,
				Config: datatypes.JSONMap{"workflow_type": "serial", "tasks": []interface{}{}},
			},
			contains: "config invalid",
		},
		{
			name:     "bad on_failure value",
			task:     workflowTask("serial", "explode", member(enabled.ID)),
			contains: "config invalid",
		},
		{
			name:     "dependency outside membership",
			task:     workflowTask("parallel", "", member(enabled.ID, 12345)),
			contains: "not part of the workflow",
		},
		{
			name:     "duplicate member",
			task:     workflowTask("serial", "", member(enabled.ID), member(enabled.ID)),
			contains: "duplicate",
		},
		{
			name:     "self containment",
			task:     workflowTask("serial", "", member(9999)),
			contains: "cannot contain itself",
		},
		{
			name:     "dependency cycle",
			task:     workflowTask("parallel", "", member(enabled.ID, disabled.ID), member(disabled.ID, enabled.ID)),
			contains: "cycle",
		},
		{
			name:     "member does not exist",
			task:     workflowTask("serial", "", member(4242)),
			contains: "does not exist",
		},
		{
			name:     "member disabled",
			task:     workflowTask("serial", "", member(disabled.ID)),
			contains: "disabled",
		},
		{
			name:     "nested workflow member",
			task:     workflowTask("serial", "", member(nested.ID)),
			contains: "nesting is not supported",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.executor.ValidateConfig(ctx, tc.task)
			require.Error(t, err)
			assert.True(t, models.IsConfigurationError(err), "expected configuration error, got %v", err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestWorkflowExecutor_ValidateConfig_AcceptsDAG(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "extract", true)
	b := f.seedMember(t, "transform", true)
	c := f.seedMember(t, "load", true)

	task := workflowTask("parallel", "continue",
		member(a.ID), member(b.ID, a.ID), member(c.ID, a.ID, b.ID))
	assert.NoError(t, f.executor.ValidateConfig(context.Background(), task))
}

func TestWorkflowExecutor_Execute_SerialStopOnFailure(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "step-a", true)
	b := f.seedMember(t, "step-b", true)
	c := f.seedMember(t, "step-c", true)
	f.runner.fail[b.ID] = true

	task := workflowTask("serial", "stop", member(a.ID), member(b.ID), member(c.ID))
	result, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.Error(t, err)
	assert.True(t, models.IsExecutionError(err))
	assert.Equal(t, []uint{a.ID, b.ID}, f.runner.called(), "the member after the failure must never start")

	statuses := memberStatuses(t, result)
	assert.Equal(t, memberStatusSuccess, statuses[a.ID])
	assert.Equal(t, memberStatusFailed, statuses[b.ID])
	assert.Equal(t, memberStatusSkipped, statuses[c.ID])
	assert.Equal(t, 1, result["succeeded"])
	assert.Equal(t, 1, result["failed"])
	assert.Equal(t, 1, result["skipped"])
}

func TestWorkflowExecutor_Execute_SerialContinueRunsRemainder(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "step-a", true)
	b := f.seedMember(t, "step-b", true)
	f.runner.fail[a.ID] = true

	task := workflowTask("serial", "continue", member(a.ID), member(b.ID))
	result, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.Error(t, err, "a failed member still fails the workflow")
	assert.True(t, models.IsExecutionError(err))
	assert.Equal(t, []uint{a.ID, b.ID}, f.runner.called())
	assert.Equal(t, 1, result["succeeded"])
	assert.Equal(t, 1, result["failed"])
	assert.Equal(t, 0, result["skipped"])
}

func TestWorkflowExecutor_Execute_SerialAllSucceed(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "step-a", true)
	b := f.seedMember(t, "step-b", true)

	task := workflowTask("serial", "", member(a.ID), member(b.ID))
	result, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, f.runner.called(), "serial members run in list order")
	assert.Equal(t, "serial", result["workflow_type"])
	assert.Equal(t, "stop", result["on_failure"], "on_failure defaults to stop")
	assert.Equal(t, 2, result["succeeded"])
	assert.Equal(t, 0, result["failed"])
}

func TestWorkflowExecutor_Execute_ParallelContinueSkipsDependents(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "step-a", true)
	b := f.seedMember(t, "step-b", true)
	c := f.seedMember(t, "step-c", true)
	f.runner.fail[a.ID] = true

	task := workflowTask("parallel", "continue", member(a.ID), member(b.ID), member(c.ID, a.ID))
	result, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.Error(t, err)
	assert.True(t, models.IsExecutionError(err))

	called := f.runner.called()
	assert.Contains(t, called, a.ID)
	assert.Contains(t, called, b.ID, "the independent member still runs under continue")
	assert.NotContains(t, called, c.ID, "a member downstream of a failure never runs")

	statuses := memberStatuses(t, result)
	assert.Equal(t, memberStatusFailed, statuses[a.ID])
	assert.Equal(t, memberStatusSuccess, statuses[b.ID])
	assert.Equal(t, memberStatusSkipped, statuses[c.ID])
}

func TestWorkflowExecutor_Execute_ParallelTransitiveSkip(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "root", true)
	b := f.seedMember(t, "left", true)
	c := f.seedMember(t, "right", true)
	d := f.seedMember(t, "join", true)
	f.runner.fail[a.ID] = true

	task := workflowTask("parallel", "continue",
		member(a.ID), member(b.ID, a.ID), member(c.ID, a.ID), member(d.ID, b.ID, c.ID))
	result, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.Error(t, err)
	assert.Equal(t, []uint{a.ID}, f.runner.called(), "nothing downstream of the failed root may run")
	assert.Equal(t, 1, result["failed"])
	assert.Equal(t, 3, result["skipped"])
}

func TestWorkflowExecutor_Execute_ParallelStopAbortsChain(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "first", true)
	b := f.seedMember(t, "second", true)
	c := f.seedMember(t, "third", true)
	f.runner.fail[b.ID] = true

	task := workflowTask("parallel", "stop", member(a.ID), member(b.ID, a.ID), member(c.ID, b.ID))
	result, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.Error(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, f.runner.called(), "dependencies gate launch order")

	statuses := memberStatuses(t, result)
	assert.Equal(t, memberStatusSkipped, statuses[c.ID])
}

func TestWorkflowExecutor_Execute_ParallelRunsReadyMembersConcurrently(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "left", true)
	b := f.seedMember(t, "right", true)
	f.runner.delay = 50 * time.Millisecond

	task := workflowTask("parallel", "", member(a.ID), member(b.ID))
	_, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.NoError(t, err)
	f.runner.mu.Lock()
	peak := f.runner.peak
	f.runner.mu.Unlock()
	assert.Equal(t, 2, peak, "independent members should overlap")
}

func TestWorkflowExecutor_Execute_RunnerErrorCountsAsFailure(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "step-a", true)
	f.runner.errs[a.ID] = fmt.Errorf("engine rejected the member")

	task := workflowTask("serial", "", member(a.ID))
	result, err := f.executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})

	require.Error(t, err)
	assert.True(t, models.IsExecutionError(err))
	docs := result["members"].([]interface{})
	doc := docs[0].(map[string]interface{})
	assert.Equal(t, memberStatusFailed, doc["status"])
	assert.Contains(t, doc["error"], "engine rejected the member")
	_, hasExecID := doc["execution_id"]
	assert.False(t, hasExecID, "a member that never produced an execution has no execution_id")
}

func TestWorkflowExecutor_Execute_NoRunnerBound(t *testing.T) {
	f := setupWorkflow(t)
	a := f.seedMember(t, "step-a", true)
	executor := NewWorkflowExecutor(f.tasks, zerolog.Nop())

	task := workflowTask("serial", "", member(a.ID))
	_, err := executor.Execute(context.Background(), &ExecutionInput{
		Task:      task,
		Execution: &models.TaskExecution{ID: 1, TaskID: task.ID},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no member runner")
}
