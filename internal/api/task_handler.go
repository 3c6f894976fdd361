package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/service"
)

// TaskHandler handles async task polling
type TaskHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(services *service.Services, log zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		services: services,
		log:      log.With().Str("handler", "task").Logger(),
	}
}

// GetTask handles GET /api/tasks/:task_id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.services.Task.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, task)
}
