package api

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/rs/zerolog"

	"task-scheduler-service/internal/services"
)

// ExecutionHandler serves execution history and termination endpoints.
type ExecutionHandler struct {
	svc    *services.TaskService
	logger zerolog.Logger
}

func NewExecutionHandler(svc *services.TaskService, logger zerolog.Logger) *ExecutionHandler {
	return &ExecutionHandler{svc: svc, logger: logger.With().Str("component", "api").Logger()}
}

func (h *ExecutionHandler) GetExecutionByID(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	exec, err := h.svc.Execution(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

// TerminateExecution requests an external stop. The run ends TERMINATED and
// is never retried; terminating a finished execution is a conflict.
func (h *ExecutionHandler) TerminateExecution(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Terminate(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info().Uint("execution_id", id).Msg("termination requested over HTTP")
	c.JSON(http.StatusOK, utils.H{"message": "Termination requested"})
}

func (h *ExecutionHandler) GetStats(ctx context.Context, c *app.RequestContext) {
	stats, err := h.svc.Stats(ctx, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
