package api

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
)

// RegisterRoutes wires every endpoint onto the hertz server.
func RegisterRoutes(h *server.Hertz, tasks *TaskHandler, executions *ExecutionHandler) {
	h.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, utils.H{"message": "pong"})
	})

	taskGroup := h.Group("/tasks")
	{
		taskGroup.POST("", tasks.CreateTask)
		taskGroup.GET("", tasks.GetTasks)
		taskGroup.GET("/:id", tasks.GetTaskByID)
		taskGroup.PUT("/:id", tasks.UpdateTask)
		taskGroup.DELETE("/:id", tasks.DeleteTask)
		taskGroup.POST("/:id/enable", tasks.EnableTask)
		taskGroup.POST("/:id/disable", tasks.DisableTask)
		taskGroup.POST("/:id/pause", tasks.PauseTask)
		taskGroup.POST("/:id/resume", tasks.ResumeTask)
		taskGroup.POST("/:id/trigger", tasks.TriggerTask)
		taskGroup.GET("/:id/executions", tasks.GetTaskExecutions)
		taskGroup.GET("/:id/stats", tasks.GetTaskStats)
	}

	execGroup := h.Group("/executions")
	{
		execGroup.GET("/:id", executions.GetExecutionByID)
		execGroup.POST("/:id/terminate", executions.TerminateExecution)
	}

	h.GET("/stats", executions.GetStats)

	workflowGroup := h.Group("/workflows")
	{
		workflowGroup.POST("/validate", tasks.ValidateWorkflow)
	}

	adminGroup := h.Group("/admin")
	{
		adminGroup.POST("/scheduler/reload", tasks.ReloadScheduler)
		adminGroup.POST("/jobs/:job_id/run", tasks.RunJob)
	}
}
