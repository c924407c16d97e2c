package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"project_portal/internal/domain"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type MessageRepository interface {
	Append(ctx context.Context, projectID, senderID uuid.UUID, text string) (*domain.MessageView, error)
	History(ctx context.Context, projectID uuid.UUID) ([]*domain.MessageView, error)
}

type messageRepository struct {
	db  DB
	log logger.Logger
}

func NewMessageRepository(db DB, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

// Append inserts the message and resolves the sender in the same statement, so the
// returned view is exactly what was committed.
func (r *messageRepository) Append(ctx context.Context, projectID, senderID uuid.UUID, text string) (*domain.MessageView, error) {
	query := `
		WITH inserted AS (
			INSERT INTO messages (project_id, sender_id, text)
			VALUES ($1, $2, $3)
			RETURNING id, project_id, sender_id, text, created_at
		)
		SELECT i.id, i.text, i.sender_id, u.name, COALESCE(u.avatar_url, ''), i.project_id, i.created_at
		FROM inserted i
		JOIN users u ON u.id = i.sender_id
	`

	view := &domain.MessageView{}
	err := r.db.QueryRow(ctx, query, projectID, senderID, text).Scan(
		&view.ID, &view.Content, &view.Sender, &view.SenderName,
		&view.SenderAvatar, &view.ProjectID, &view.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sender does not resolve", apperrors.ErrValidation)
		}
		switch pgErrorCode(err) {
		case pgForeignKeyViolation:
			r.log.Warn("Message references unknown project or sender", "project_id", projectID, "sender_id", senderID)
			return nil, fmt.Errorf("%w: project or sender does not exist", apperrors.ErrValidation)
		case pgCheckViolation:
			return nil, fmt.Errorf("%w: message text is empty", apperrors.ErrValidation)
		}
		r.log.Error("Failed to append message", "error", err, "project_id", projectID)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}

	return view, nil
}

func (r *messageRepository) History(ctx context.Context, projectID uuid.UUID) ([]*domain.MessageView, error) {
	query := `
		SELECT m.id, m.text, m.sender_id, u.name, COALESCE(u.avatar_url, ''), m.project_id, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.project_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.log.Error("Failed to load message history", "error", err, "project_id", projectID)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	messages := make([]*domain.MessageView, 0)
	for rows.Next() {
		view := &domain.MessageView{}
		if err := rows.Scan(
			&view.ID, &view.Content, &view.Sender, &view.SenderName,
			&view.SenderAvatar, &view.ProjectID, &view.Timestamp,
		); err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		messages = append(messages, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}

	return messages, nil
}
