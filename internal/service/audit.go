package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/internal/repository"
	"project_portal/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorUserID *uuid.UUID, actorRole string, projectID *uuid.UUID, eventType string, payload map[string]interface{}) error
	// Record is LogEvent for callers that must not fail on audit errors.
	Record(ctx context.Context, actorUserID *uuid.UUID, actorRole string, projectID *uuid.UUID, eventType string, payload map[string]interface{})
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.AuditLog, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorUserID *uuid.UUID, actorRole string, projectID *uuid.UUID, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now(),
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		ProjectID:   projectID,
		EventType:   eventType,
		Payload:     payload,
	}

	return s.auditRepo.CreateLog(ctx, auditLog)
}

func (s *auditService) Record(ctx context.Context, actorUserID *uuid.UUID, actorRole string, projectID *uuid.UUID, eventType string, payload map[string]interface{}) {
	if err := s.LogEvent(ctx, actorUserID, actorRole, projectID, eventType, payload); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", eventType)
	}
}

func (s *auditService) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.auditRepo.ListByProject(ctx, projectID, limit)
}
