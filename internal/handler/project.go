package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"project_portal/internal/domain"
	"project_portal/internal/service"
	"project_portal/pkg/logger"
)

type ProjectHandler struct {
	projectService service.ProjectService
	taskService    service.TaskService
	log            logger.Logger
}

func NewProjectHandler(projectService service.ProjectService, taskService service.TaskService, log logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		taskService:    taskService,
		log:            log,
	}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	var req domain.CreateProjectInput
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), actor, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	projects, err := h.projectService.List(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), actor, projectID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req domain.UpdateProjectInput
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), actor, projectID, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), actor, projectID); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// Tasks lists a project's tasks filtered by ?status= and ?assignee=.
func (h *ProjectHandler) Tasks(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	filter, ok := taskFilter(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListByProject(c.Request.Context(), actor, projectID, filter)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *ProjectHandler) Online(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	users, err := h.projectService.Online(c.Request.Context(), actor, projectID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *ProjectHandler) Activity(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.projectService.Activity(c.Request.Context(), actor, projectID, limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
