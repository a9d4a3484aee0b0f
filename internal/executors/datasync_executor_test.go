package executors

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"task-scheduler-service/internal/datasync"
	"task-scheduler-service/internal/models"
)

// fakeSyncService records what the executor asked for.
type fakeSyncService struct {
	calls     []string
	lastInfo  datasync.ExtraInfo
	lastRange datasync.Range
	err       error
}

func (f *fakeSyncService) record(call string, r datasync.Range, info datasync.ExtraInfo) (map[string]interface{}, error) {
	f.calls = append(f.calls, call)
	f.lastInfo = info
	f.lastRange = r
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"call": call}, nil
}

func (f *fakeSyncService) SyncStockList(ctx context.Context, info datasync.ExtraInfo) (map[string]interface{}, error) {
	return f.record(ActionSyncStockList, datasync.Range{}, info)
}

func (f *fakeSyncService) SyncTradingCalendar(ctx context.Context, info datasync.ExtraInfo) (map[string]interface{}, error) {
	return f.record(ActionSyncTradingCalendar, datasync.Range{}, info)
}

func (f *fakeSyncService) SyncDailyData(ctx context.Context, r datasync.Range, info datasync.ExtraInfo) (map[string]interface{}, error) {
	return f.record(ActionSyncDailyData, r, info)
}

func (f *fakeSyncService) SyncAllDailyData(ctx context.Context, r datasync.Range, info datasync.ExtraInfo) (map[string]interface{}, error) {
	return f.record(ActionSyncAllDailyData, r, info)
}

var _ datasync.Service = (*fakeSyncService)(nil)

func dataInput(name string, config map[string]interface{}) *ExecutionInput {
	return &ExecutionInput{
		Task: &models.ScheduledTask{
			ID:       7,
			Name:     name,
			TaskType: models.TaskTypeCommon,
			Config:   datatypes.JSONMap(config),
		},
		Execution: &models.TaskExecution{ID: 1, TaskID: 7},
	}
}

func TestDataSyncExecutor_RoutesActions(t *testing.T) {
	testCases := []struct {
		action   string
		expected string
	}{
		{action: ActionSyncStockList, expected: ActionSyncStockList},
		{action: ActionSyncTradingCalendar, expected: ActionSyncTradingCalendar},
		{action: ActionSyncDailyData, expected: ActionSyncDailyData},
		{action: ActionSyncAllDailyData, expected: ActionSyncAllDailyData},
	}
	for _, tc := range testCases {
		t.Run(tc.action, func(t *testing.T) {
			svc := &fakeSyncService{}
			executor := NewDataSyncExecutor(svc, zerolog.Nop())

			result, err := executor.Execute(context.Background(), dataInput("nightly-sync", map[string]interface{}{
				"task_action": tc.action,
			}))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result["call"])
			assert.Equal(t, []string{tc.expected}, svc.calls)
		})
	}
}

func TestDataSyncExecutor_ProvenanceIsTaskName(t *testing.T) {
	svc := &fakeSyncService{}
	executor := NewDataSyncExecutor(svc, zerolog.Nop())

	_, err := executor.Execute(context.Background(), dataInput("calendar-refresh", map[string]interface{}{
		"task_action": ActionSyncTradingCalendar,
	}))
	require.NoError(t, err)
	assert.Equal(t, "calendar-refresh", svc.lastInfo.CreatedBy)
	assert.Equal(t, "calendar-refresh", svc.lastInfo.UpdatedBy)
}

func TestDataSyncExecutor_RangeFromConfig(t *testing.T) {
	svc := &fakeSyncService{}
	executor := NewDataSyncExecutor(svc, zerolog.Nop())

	// JSON documents deliver codelist as []interface{}.
	_, err := executor.Execute(context.Background(), dataInput("daily", map[string]interface{}{
		"task_action": ActionSyncDailyData,
		"start_date":  "20250101",
		"end_date":    "20250131",
		"codelist":    []interface{}{"600000.SH", "000001.SZ"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "20250101", svc.lastRange.StartDate)
	assert.Equal(t, "20250131", svc.lastRange.EndDate)
	assert.Equal(t, []string{"600000.SH", "000001.SZ"}, svc.lastRange.CodeList)
}

func TestDataSyncExecutor_LegacyTaskTypeKey(t *testing.T) {
	svc := &fakeSyncService{}
	executor := NewDataSyncExecutor(svc, zerolog.Nop())

	_, err := executor.Execute(context.Background(), dataInput("legacy", map[string]interface{}{
		"task_type": "stock_list",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{ActionSyncStockList}, svc.calls)
}

func TestDataSyncExecutor_ExampleActionSkipsService(t *testing.T) {
	svc := &fakeSyncService{}
	executor := NewDataSyncExecutor(svc, zerolog.Nop())

	result, err := executor.Execute(context.Background(), dataInput("noop", map[string]interface{}{
		"task_action": ActionExample,
	}))
	require.NoError(t, err)
	assert.Equal(t, "example action completed", result["message"])
	assert.Empty(t, svc.calls)
}

func TestDataSyncExecutor_ConfigErrors(t *testing.T) {
	testCases := []struct {
		name   string
		config map[string]interface{}
	}{
		{name: "no action at all", config: map[string]interface{}{}},
		{name: "empty task_action", config: map[string]interface{}{"task_action": ""}},
		{name: "task_action not a string", config: map[string]interface{}{"task_action": 1}},
		{name: "unknown task_action", config: map[string]interface{}{"task_action": "sync_everything"}},
		{name: "unknown legacy task_type", config: map[string]interface{}{"task_type": "minute_data"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			executor := NewDataSyncExecutor(&fakeSyncService{}, zerolog.Nop())
			_, err := executor.Execute(context.Background(), dataInput("bad", tc.config))
			require.Error(t, err)
			assert.True(t, models.IsConfigurationError(err), "expected configuration error, got %v", err)
		})
	}
}

func TestDataSyncExecutor_WrapsServiceFailure(t *testing.T) {
	svc := &fakeSyncService{err: errors.New("provider unavailable")}
	executor := NewDataSyncExecutor(svc, zerolog.Nop())

	_, err := executor.Execute(context.Background(), dataInput("sync", map[string]interface{}{
		"task_action": ActionSyncStockList,
	}))
	require.Error(t, err)
	assert.True(t, models.IsExecutionError(err))
	assert.Contains(t, err.Error(), "provider unavailable")
}
