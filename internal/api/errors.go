package api

import (
	"errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
	"task-scheduler-service/internal/services"
)

// writeError maps the service error taxonomy onto HTTP statuses. Invalid
// definitions are the caller's problem, missing resources are 404, racing a
// terminate against an already-finished execution is a conflict.
func writeError(c *app.RequestContext, err error) {
	switch {
	case models.IsConfigurationError(err):
		c.JSON(http.StatusBadRequest, utils.H{"error": err.Error()})
	case models.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, utils.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyFinal):
		c.JSON(http.StatusConflict, utils.H{"error": err.Error()})
	case errors.Is(err, services.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, utils.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, utils.H{"error": err.Error()})
	}
}
