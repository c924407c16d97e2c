package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/internal/service"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type TaskHandler struct {
	taskService service.TaskService
	log         logger.Logger
}

func NewTaskHandler(taskService service.TaskService, log logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		log:         log,
	}
}

func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	var req domain.CreateTaskInput
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), actor, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	filter, ok := taskFilter(c)
	if !ok {
		return
	}
	if raw := c.Query("project"); raw != "" {
		projectID, err := uuid.Parse(raw)
		if err != nil {
			fail(c, apperrors.NewAPIError("invalid project", http.StatusBadRequest))
			return
		}
		filter.ProjectID = &projectID
	}

	tasks, err := h.taskService.List(c.Request.Context(), actor, filter)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) Get(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), actor, taskID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req domain.UpdateTaskInput
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), actor, taskID, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), actor, taskID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// taskFilter reads ?status= and ?assignee=.
func taskFilter(c *gin.Context) (domain.TaskFilter, bool) {
	filter := domain.TaskFilter{Status: c.Query("status")}
	if raw := c.Query("assignee"); raw != "" {
		assignee, err := uuid.Parse(raw)
		if err != nil {
			fail(c, apperrors.NewAPIError("invalid assignee", http.StatusBadRequest))
			return filter, false
		}
		filter.AssigneeID = &assignee
	}
	return filter, true
}
