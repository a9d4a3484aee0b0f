package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStatusTerminal(t *testing.T) {
	assert.False(t, ExecutionPending.IsTerminal())
	assert.False(t, ExecutionRunning.IsTerminal())
	assert.True(t, ExecutionSuccess.IsTerminal())
	assert.True(t, ExecutionFailed.IsTerminal())
	assert.True(t, ExecutionCompleted.IsTerminal())
	assert.True(t, ExecutionTerminated.IsTerminal())
}

func TestExecutionStatusSuccess(t *testing.T) {
	assert.True(t, ExecutionSuccess.IsSuccess())
	assert.True(t, ExecutionCompleted.IsSuccess(), "legacy alias counts as success")
	assert.False(t, ExecutionFailed.IsSuccess())
	assert.False(t, ExecutionRunning.IsSuccess())
}

func TestExecutionResultRoundTrip(t *testing.T) {
	e := &TaskExecution{}

	assert.NotNil(t, e.GetResult())
	assert.Empty(t, e.GetResult())

	e.SetResult(nil)
	assert.NotNil(t, e.Result)
	assert.Empty(t, e.Result)

	e.SetResult(map[string]interface{}{"rows_synced": 42})
	assert.Equal(t, 42, e.GetResult()["rows_synced"])
}

func TestExecutionFinish(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	e := &TaskExecution{Status: ExecutionRunning, StartTime: start}

	end := start.Add(90 * time.Second)
	e.Finish(ExecutionSuccess, end)

	assert.Equal(t, ExecutionSuccess, e.Status)
	require.NotNil(t, e.EndTime)
	assert.Equal(t, end, *e.EndTime)
	assert.InDelta(t, 90.0, e.DurationSeconds, 0.001)
}
