package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project_portal/internal/service"
	"project_portal/pkg/logger"
)

type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	user, err := h.userService.GetMe(c.Request.Context(), actor.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}
