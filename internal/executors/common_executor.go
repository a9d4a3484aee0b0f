package executors

import (
	"context"

	"gorm.io/datatypes"

	"task-scheduler-service/internal/models"
)

// CommonExecutor serves COMMON and MANUAL tasks by routing on the config
// document: a command key goes to the script executor, a task_action (or
// legacy task_type) goes to the data-sync executor.
type CommonExecutor struct {
	script *ScriptExecutor
	data   *DataSyncExecutor
}

func NewCommonExecutor(script *ScriptExecutor, data *DataSyncExecutor) *CommonExecutor {
	return &CommonExecutor{script: script, data: data}
}

func (e *CommonExecutor) TaskType() models.TaskType { return models.TaskTypeCommon }

func (e *CommonExecutor) Execute(ctx context.Context, input *ExecutionInput) (datatypes.JSONMap, error) {
	cfg := input.Task.GetConfig()
	if _, ok := cfg["command"]; ok {
		return e.script.Execute(ctx, input)
	}

	action, err := resolveAction(cfg)
	if err != nil {
		return nil, err
	}
	if action != "" {
		return e.data.ExecuteAction(ctx, action, input)
	}
	return nil, models.NewConfigurationError("config needs either a command or a task_action")
}

// ValidateConfig rejects configs that could never run. An empty config
// passes so a task can be created before its config is filled in; it fails
// at run time instead.
func (e *CommonExecutor) ValidateConfig(ctx context.Context, task *models.ScheduledTask) error {
	cfg := task.GetConfig()
	if _, ok := cfg["command"]; ok {
		if _, err := commandFromConfig(cfg); err != nil {
			return err
		}
		_, err := timeoutFromConfig(cfg, 0)
		return err
	}

	action, err := resolveAction(cfg)
	if err != nil {
		return err
	}
	if action == "" {
		return nil
	}
	if !knownAction(action) {
		return models.NewConfigurationError("unknown task_action %q", action)
	}
	return nil
}

func knownAction(action string) bool {
	switch action {
	case ActionSyncStockList, ActionSyncTradingCalendar, ActionSyncDailyData,
		ActionSyncAllDailyData, ActionExample:
		return true
	}
	return false
}

var (
	_ Executor        = (*CommonExecutor)(nil)
	_ ConfigValidator = (*CommonExecutor)(nil)
)
