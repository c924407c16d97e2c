package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/internal/service"
	"project_portal/pkg/logger"
)

// MessagePublisher appends a message and fans it out to the project's room.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, identity domain.Identity, projectID uuid.UUID, text string) (*domain.MessageView, error)
}

type ChatHandler struct {
	chatService service.ChatService
	publisher   MessagePublisher
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, publisher MessagePublisher, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		publisher:   publisher,
		log:         log,
	}
}

func (h *ChatHandler) History(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "projectId")
	if !ok {
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), actor, projectID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// Send takes the same append-then-broadcast path as a socket sendMessage.
func (h *ChatHandler) Send(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	var req domain.SendMessageInput
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.publisher.PublishMessage(c.Request.Context(), actor, req.ProjectID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}
