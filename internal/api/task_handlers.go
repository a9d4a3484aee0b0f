package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/rs/zerolog"

	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
	"task-scheduler-service/internal/services"
)

// TaskHandler serves the task definition and lifecycle endpoints.
type TaskHandler struct {
	svc    *services.TaskService
	logger zerolog.Logger
}

func NewTaskHandler(svc *services.TaskService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger.With().Str("component", "api").Logger()}
}

// ValidateWorkflowRequest wraps a candidate workflow config for dry-run
// validation.
type ValidateWorkflowRequest struct {
	Config map[string]interface{} `json:"config"`
}

func parseID(c *app.RequestContext, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid ID format"})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *app.RequestContext, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (h *TaskHandler) CreateTask(ctx context.Context, c *app.RequestContext) {
	var in services.CreateTaskInput
	if err := c.BindAndValidate(&in); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	task, err := h.svc.Create(ctx, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTasks(ctx context.Context, c *app.RequestContext) {
	filter := repository.TaskFilter{}
	if raw := c.Query("task_type"); raw != "" {
		taskType := models.TaskType(raw)
		if !taskType.Valid() {
			c.JSON(http.StatusBadRequest, utils.H{"error": "Unknown task_type: " + raw})
			return
		}
		filter.TaskType = &taskType
	}
	if raw := c.Query("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid enabled value: " + raw})
			return
		}
		filter.Enabled = &enabled
	}

	views, err := h.svc.List(ctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *TaskHandler) GetTaskByID(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Status(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TaskHandler) UpdateTask(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateTaskInput
	if err := c.BindAndValidate(&in); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	task, err := h.svc.Update(ctx, id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"message": "Task deleted"})
}

func (h *TaskHandler) EnableTask(ctx context.Context, c *app.RequestContext) {
	h.setEnabled(ctx, c, true)
}

func (h *TaskHandler) DisableTask(ctx context.Context, c *app.RequestContext) {
	h.setEnabled(ctx, c, false)
}

func (h *TaskHandler) setEnabled(ctx context.Context, c *app.RequestContext, enabled bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, err := h.svc.SetEnabled(ctx, id, enabled)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) PauseTask(ctx context.Context, c *app.RequestContext) {
	h.setPaused(ctx, c, true)
}

func (h *TaskHandler) ResumeTask(ctx context.Context, c *app.RequestContext) {
	h.setPaused(ctx, c, false)
}

func (h *TaskHandler) setPaused(ctx context.Context, c *app.RequestContext, paused bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, err := h.svc.SetPaused(ctx, id, paused)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// TriggerTask starts a manual run. The response carries the freshly created
// RUNNING execution; the run itself continues in the background.
func (h *TaskHandler) TriggerTask(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	exec, err := h.svc.Trigger(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exec)
}

func (h *TaskHandler) GetTaskExecutions(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	execs, err := h.svc.Executions(ctx, id, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, execs)
}

func (h *TaskHandler) GetTaskStats(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	stats, err := h.svc.Stats(ctx, &id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ValidateWorkflow dry-runs workflow config validation without persisting
// anything. An invalid config is a successful validation whose answer is no,
// so it comes back 200 with valid=false rather than as an error status.
func (h *TaskHandler) ValidateWorkflow(ctx context.Context, c *app.RequestContext) {
	var req ValidateWorkflowRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if req.Config == nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "config is required"})
		return
	}
	if err := h.svc.ValidateWorkflowConfig(ctx, req.Config); err != nil {
		if models.IsConfigurationError(err) {
			c.JSON(http.StatusOK, utils.H{"valid": false, "error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"valid": true})
}

func (h *TaskHandler) ReloadScheduler(ctx context.Context, c *app.RequestContext) {
	if err := h.svc.ReloadAll(ctx); err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info().Msg("scheduler reload triggered over HTTP")
	c.JSON(http.StatusOK, utils.H{"message": "Scheduler reload triggered"})
}

// RunJob fires a live registration ahead of schedule by job id. A success
// means the fire was scheduled, not that the run finished.
func (h *TaskHandler) RunJob(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("job_id")
	if err := h.svc.TriggerJob(jobID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"message": "Job run scheduled"})
}
