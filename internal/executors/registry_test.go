package executors

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-scheduler-service/internal/datasync"
	"task-scheduler-service/internal/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := zerolog.Nop()
	script := NewScriptExecutor(logger, 0)
	data := NewDataSyncExecutor(datasync.NewNoop(logger), logger)
	common := NewCommonExecutor(script, data)

	registry := NewRegistry()
	registry.Register(common)
	registry.RegisterAs(models.TaskTypeManual, common)
	return registry
}

func TestRegistry_Get(t *testing.T) {
	registry := testRegistry(t)

	common, err := registry.Get(models.TaskTypeCommon)
	require.NoError(t, err)
	assert.IsType(t, &CommonExecutor{}, common)

	manual, err := registry.Get(models.TaskTypeManual)
	require.NoError(t, err)
	assert.Same(t, common, manual, "MANUAL and COMMON should share one executor instance")
}

func TestRegistry_Get_Unknown(t *testing.T) {
	registry := testRegistry(t)

	executor, err := registry.Get(models.TaskTypeWorkflow)
	assert.Nil(t, executor)
	require.Error(t, err)
	assert.True(t, models.IsNotFoundError(err), "missing executor should be a not-found error")
	assert.Contains(t, err.Error(), "executor not found: WORKFLOW")
}

func TestRegistry_Types(t *testing.T) {
	registry := testRegistry(t)
	assert.Equal(t, []models.TaskType{models.TaskTypeCommon, models.TaskTypeManual}, registry.Types())
}
