package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"project_portal/internal/config"
	"project_portal/internal/domain"
	"project_portal/internal/middleware"
	"project_portal/internal/realtime"
	"project_portal/internal/service"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	User      *UserHandler
	Project   *ProjectHandler
	Task      *TaskHandler
	Chat      *ChatHandler
	Dashboard *DashboardHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, gateway *realtime.Gateway, checks map[string]HealthCheck, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(checks, log),
		Auth:      NewAuthHandler(services.Auth, log),
		User:      NewUserHandler(services.User, log),
		Project:   NewProjectHandler(services.Project, services.Task, log),
		Task:      NewTaskHandler(services.Task, log),
		Chat:      NewChatHandler(services.Chat, gateway, log),
		Dashboard: NewDashboardHandler(services.Dashboard, log),
		WebSocket: NewWebSocketHandler(gateway, cfg.CORS, log),
	}
}

// identity aborts with 401 when the route is not behind RequireAuth.
func identity(c *gin.Context) (domain.Identity, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		c.Abort()
	}
	return id, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, apperrors.NewAPIError("invalid "+name, http.StatusBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

// fail hands err to middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperrors.NewAPIError("Invalid request: "+err.Error(), http.StatusBadRequest))
		return false
	}
	return true
}
