package executors

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"task-scheduler-service/internal/models"
)

// ScriptExecutor runs a shell command taken from the task config. The
// command runs through `sh -c`, with stdout and stderr captured into the
// execution result.
type ScriptExecutor struct {
	logger         zerolog.Logger
	defaultTimeout time.Duration
}

// NewScriptExecutor builds a ScriptExecutor. defaultTimeout bounds commands
// whose config has no timeout_seconds; zero means unbounded.
func NewScriptExecutor(logger zerolog.Logger, defaultTimeout time.Duration) *ScriptExecutor {
	return &ScriptExecutor{
		logger:         logger.With().Str("component", "script_executor").Logger(),
		defaultTimeout: defaultTimeout,
	}
}

func (e *ScriptExecutor) TaskType() models.TaskType { return models.TaskTypeCommon }

func (e *ScriptExecutor) Execute(ctx context.Context, input *ExecutionInput) (datatypes.JSONMap, error) {
	cfg := input.Task.GetConfig()
	command, err := commandFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	timeout, err := timeoutFromConfig(cfg, e.defaultTimeout)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e.logger.Info().Uint("task_id", input.Task.ID).Str("task", input.Task.Name).
		Str("command", command).Msg("running command")

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	result := datatypes.JSONMap{
		"command":         command,
		"stdout":          stdout.String(),
		"stderr":          stderr.String(),
		"elapsed_seconds": elapsed.Seconds(),
	}

	if runErr == nil {
		result["exit_code"] = 0
		return result, nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return result, models.NewTerminationError("command cancelled")
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, models.NewExecutionError("command timed out after %s", timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result["exit_code"] = exitErr.ExitCode()
		return result, models.NewExecutionError("command exited with status %d: %s",
			exitErr.ExitCode(), summarize(stderr.String()))
	}
	return result, models.WrapExecutionError(runErr, "command failed to start")
}

func commandFromConfig(cfg map[string]interface{}) (string, error) {
	raw, ok := cfg["command"]
	if !ok {
		return "", models.NewConfigurationError("config has no command")
	}
	command, ok := raw.(string)
	if !ok || strings.TrimSpace(command) == "" {
		return "", models.NewConfigurationError("command must be a non-empty string")
	}
	return command, nil
}

func timeoutFromConfig(cfg map[string]interface{}, def time.Duration) (time.Duration, error) {
	raw, ok := cfg["timeout_seconds"]
	if !ok {
		return def, nil
	}
	var seconds float64
	switch v := raw.(type) {
	case float64:
		seconds = v
	case int:
		seconds = float64(v)
	case int64:
		seconds = float64(v)
	default:
		return 0, models.NewConfigurationError("timeout_seconds must be a number")
	}
	if seconds <= 0 {
		return 0, models.NewConfigurationError("timeout_seconds must be positive")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// summarize trims process stderr down to something that fits in an error
// message.
func summarize(stderr string) string {
	s := strings.TrimSpace(stderr)
	if s == "" {
		return "(no stderr)"
	}
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		s = s[:idx]
	}
	const maxLen = 512
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

var _ Executor = (*ScriptExecutor)(nil)
