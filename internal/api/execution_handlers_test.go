package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
)

func TestGetExecutionAPI(t *testing.T) {
	f := setupTestApp(t)
	task := createTaskViaAPI(t, f, map[string]interface{}{
		"name": "exec-get", "task_type": "MANUAL",
	})

	exec := &models.TaskExecution{
		TaskID: task.ID, TaskName: task.Name,
		Status: models.ExecutionSuccess, Trigger: models.TriggerManual,
		StartTime: time.Now(),
	}
	require.NoError(t, f.execs.Create(context.Background(), exec))

	resp := performJSON(t, f.router, "GET", fmt.Sprintf("/executions/%d", exec.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var fetched models.TaskExecution
	require.NoError(t, json.Unmarshal(resp.Body(), &fetched))
	assert.Equal(t, exec.ID, fetched.ID)
	assert.Equal(t, task.Name, fetched.TaskName)
}

func TestGetExecutionAPI_NotFound(t *testing.T) {
	f := setupTestApp(t)
	resp := performJSON(t, f.router, "GET", "/executions/424242", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestTerminateExecutionAPI_StaleRunning(t *testing.T) {
	f := setupTestApp(t)
	task := createTaskViaAPI(t, f, map[string]interface{}{
		"name": "exec-terminate", "task_type": "MANUAL",
	})

	exec := &models.TaskExecution{
		TaskID: task.ID, TaskName: task.Name,
		Status: models.ExecutionRunning, Trigger: models.TriggerManual,
		StartTime: time.Now(),
	}
	require.NoError(t, f.execs.Create(context.Background(), exec))

	resp := performJSON(t, f.router, "POST", fmt.Sprintf("/executions/%d/terminate", exec.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	row, err := f.execs.GetByID(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionTerminated, row.Status)
}

func TestTerminateExecutionAPI_AlreadyFinished(t *testing.T) {
	f := setupTestApp(t)
	task := createTaskViaAPI(t, f, map[string]interface{}{
		"name": "exec-conflict", "task_type": "MANUAL",
	})

	exec := &models.TaskExecution{
		TaskID: task.ID, TaskName: task.Name,
		Status: models.ExecutionSuccess, Trigger: models.TriggerManual,
		StartTime: time.Now(),
	}
	require.NoError(t, f.execs.Create(context.Background(), exec))

	resp := performJSON(t, f.router, "POST", fmt.Sprintf("/executions/%d/terminate", exec.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())
}

func TestGlobalStatsAPI(t *testing.T) {
	f := setupTestApp(t)
	task := createTaskViaAPI(t, f, map[string]interface{}{
		"name": "stats-global", "task_type": "MANUAL",
	})

	ctx := context.Background()
	for _, status := range []models.ExecutionStatus{
		models.ExecutionSuccess, models.ExecutionSuccess, models.ExecutionFailed,
	} {
		exec := &models.TaskExecution{
			TaskID: task.ID, TaskName: task.Name,
			Status: status, Trigger: models.TriggerManual,
			StartTime: time.Now(),
		}
		require.NoError(t, f.execs.Create(ctx, exec))
	}

	resp := performJSON(t, f.router, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	var stats repository.ExecutionStats
	require.NoError(t, json.Unmarshal(resp.Body(), &stats))
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.Success)
	assert.EqualValues(t, 1, stats.Failed)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)
}
