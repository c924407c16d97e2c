package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/internal/repository"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type ChatService interface {
	// Append validates and durably stores a message. It never broadcasts; the
	// realtime gateway fans out only after Append returns successfully.
	Append(ctx context.Context, projectID, senderID uuid.UUID, text string) (*domain.MessageView, error)
	// History returns the full log of a project in commit order.
	History(ctx context.Context, actor domain.Identity, projectID uuid.UUID) ([]*domain.MessageView, error)
}

type chatService struct {
	messageRepo repository.MessageRepository
	projectRepo repository.ProjectRepository
	audit       AuditService
	maxLength   int
	log         logger.Logger
}

func NewChatService(messageRepo repository.MessageRepository, projectRepo repository.ProjectRepository, audit AuditService, maxLength int, log logger.Logger) ChatService {
	return &chatService{
		messageRepo: messageRepo,
		projectRepo: projectRepo,
		audit:       audit,
		maxLength:   maxLength,
		log:         log,
	}
}

func (s *chatService) Append(ctx context.Context, projectID, senderID uuid.UUID, text string) (*domain.MessageView, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is empty", apperrors.ErrValidation)
	}
	if s.maxLength > 0 && utf8.RuneCountInString(text) > s.maxLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrValidation, s.maxLength)
	}
	if projectID == uuid.Nil || senderID == uuid.Nil {
		return nil, fmt.Errorf("%w: project and sender are required", apperrors.ErrValidation)
	}

	view, err := s.messageRepo.Append(ctx, projectID, senderID, text)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &senderID, domain.ActorRoleMember, &projectID, domain.EventTypeMessageSent, map[string]interface{}{
		"message_id": view.ID,
		"length":     utf8.RuneCountInString(text),
	})
	return view, nil
}

func (s *chatService) History(ctx context.Context, actor domain.Identity, projectID uuid.UUID) ([]*domain.MessageView, error) {
	if _, err := loadAccessibleProject(ctx, s.projectRepo, projectID, actor); err != nil {
		return nil, err
	}
	return s.messageRepo.History(ctx, projectID)
}
