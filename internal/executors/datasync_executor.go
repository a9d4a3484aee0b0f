package executors

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"task-scheduler-service/internal/datasync"
	"task-scheduler-service/internal/models"
)

// Data action names understood by the data-sync executor.
const (
	ActionSyncStockList       = "sync_stock_list"
	ActionSyncTradingCalendar = "sync_trading_calendar"
	ActionSyncDailyData       = "sync_daily_data"
	ActionSyncAllDailyData    = "sync_all_daily_data"
	ActionExample             = "example"
)

// legacyActionByType translates the retired task_type config key into a
// task_action. The table is closed: unknown legacy values are configuration
// errors, not guesses.
var legacyActionByType = map[string]string{
	"stock_list":       ActionSyncStockList,
	"trading_calendar": ActionSyncTradingCalendar,
	"daily_data":       ActionSyncDailyData,
	"all_daily_data":   ActionSyncAllDailyData,
	"example":          ActionExample,
}

// resolveAction picks the data action out of a config document, honoring
// the legacy task_type key. Empty string means the config names no action.
func resolveAction(cfg map[string]interface{}) (string, error) {
	if raw, ok := cfg["task_action"]; ok {
		action, ok := raw.(string)
		if !ok || action == "" {
			return "", models.NewConfigurationError("task_action must be a non-empty string")
		}
		return action, nil
	}
	if raw, ok := cfg["task_type"]; ok {
		legacy, ok := raw.(string)
		if !ok || legacy == "" {
			return "", models.NewConfigurationError("task_type must be a non-empty string")
		}
		action, known := legacyActionByType[legacy]
		if !known {
			return "", models.NewConfigurationError("unknown legacy task_type %q", legacy)
		}
		return action, nil
	}
	return "", nil
}

// DataSyncExecutor bridges task configs to the data-sync collaborator.
type DataSyncExecutor struct {
	svc    datasync.Service
	logger zerolog.Logger
}

func NewDataSyncExecutor(svc datasync.Service, logger zerolog.Logger) *DataSyncExecutor {
	return &DataSyncExecutor{
		svc:    svc,
		logger: logger.With().Str("component", "datasync_executor").Logger(),
	}
}

func (e *DataSyncExecutor) TaskType() models.TaskType { return models.TaskTypeCommon }

func (e *DataSyncExecutor) Execute(ctx context.Context, input *ExecutionInput) (datatypes.JSONMap, error) {
	action, err := resolveAction(input.Task.GetConfig())
	if err != nil {
		return nil, err
	}
	if action == "" {
		return nil, models.NewConfigurationError("config names no task_action")
	}
	return e.ExecuteAction(ctx, action, input)
}

// ExecuteAction runs a specific data action for the task. The owning task's
// name travels as row provenance.
func (e *DataSyncExecutor) ExecuteAction(ctx context.Context, action string, input *ExecutionInput) (datatypes.JSONMap, error) {
	task := input.Task
	info := datasync.ExtraInfo{CreatedBy: task.Name, UpdatedBy: task.Name}
	syncRange := rangeFromConfig(task.GetConfig())

	e.logger.Info().Uint("task_id", task.ID).Str("task", task.Name).
		Str("action", action).Msg("running data action")

	var (
		result map[string]interface{}
		err    error
	)
	switch action {
	case ActionSyncStockList:
		result, err = e.svc.SyncStockList(ctx, info)
	case ActionSyncTradingCalendar:
		result, err = e.svc.SyncTradingCalendar(ctx, info)
	case ActionSyncDailyData:
		result, err = e.svc.SyncDailyData(ctx, syncRange, info)
	case ActionSyncAllDailyData:
		result, err = e.svc.SyncAllDailyData(ctx, syncRange, info)
	case ActionExample:
		result = map[string]interface{}{"message": "example action completed"}
	default:
		return nil, models.NewConfigurationError("unknown task_action %q", action)
	}
	if err != nil {
		if models.IsTerminationError(err) || models.IsConfigurationError(err) {
			return nil, err
		}
		return nil, models.WrapExecutionError(err, "data action "+action+" failed")
	}
	return datatypes.JSONMap(result), nil
}

func rangeFromConfig(cfg map[string]interface{}) datasync.Range {
	r := datasync.Range{}
	if v, ok := cfg["start_date"].(string); ok {
		r.StartDate = v
	}
	if v, ok := cfg["end_date"].(string); ok {
		r.EndDate = v
	}
	if raw, ok := cfg["codelist"].([]interface{}); ok {
		for _, item := range raw {
			if code, ok := item.(string); ok {
				r.CodeList = append(r.CodeList, code)
			}
		}
	}
	return r
}

var _ Executor = (*DataSyncExecutor)(nil)
