package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project_portal/internal/service"
	"project_portal/pkg/logger"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
	log              logger.Logger
}

func NewDashboardHandler(dashboardService service.DashboardService, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		log:              log,
	}
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	summary, err := h.dashboardService.Summary(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
