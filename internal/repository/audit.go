package repository

import (
	"context"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.AuditLog, error)
}

type auditRepository struct {
	db  DB
	log logger.Logger
}

func NewAuditRepository(db DB, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_user_id, actor_role, project_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorUserID, auditLog.ActorRole,
		auditLog.ProjectID, auditLog.EventType, auditLog.Payload,
	).Scan(&auditLog.ID)
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err)
		return err
	}

	return nil
}

func (r *auditRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, event_time, actor_user_id, actor_role, project_id, event_type, payload
		FROM audit_log
		WHERE project_id = $1
		ORDER BY event_time DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, projectID, limit)
	if err != nil {
		r.log.Error("Failed to list audit log", "error", err, "project_id", projectID)
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		entry := &domain.AuditLog{}
		if err := rows.Scan(
			&entry.ID, &entry.EventTime, &entry.ActorUserID, &entry.ActorRole,
			&entry.ProjectID, &entry.EventType, &entry.Payload,
		); err != nil {
			r.log.Error("Failed to scan audit log", "error", err)
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
