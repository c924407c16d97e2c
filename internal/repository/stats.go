package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/pkg/logger"
)

// StatsRepository serves the persisted half of the dashboard. A nil scope counts everything.
type StatsRepository interface {
	ProjectCount(ctx context.Context, scope *uuid.UUID) (int, error)
	TaskCounts(ctx context.Context, scope *uuid.UUID, now time.Time) (*domain.TaskCounts, error)
}

type statsRepository struct {
	db  DB
	log logger.Logger
}

func NewStatsRepository(db DB, log logger.Logger) StatsRepository {
	return &statsRepository{db: db, log: log}
}

func (r *statsRepository) ProjectCount(ctx context.Context, scope *uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM projects p
		WHERE $1::uuid IS NULL
		   OR p.created_by = $1
		   OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $1)
	`

	var count int
	if err := r.db.QueryRow(ctx, query, scope).Scan(&count); err != nil {
		r.log.Error("Failed to count projects", "error", err)
		return 0, err
	}
	return count, nil
}

func (r *statsRepository) TaskCounts(ctx context.Context, scope *uuid.UUID, now time.Time) (*domain.TaskCounts, error) {
	query := `
		SELECT t.status,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE t.deadline IS NOT NULL AND t.deadline < $2 AND t.status <> 'Done')
		FROM tasks t
		WHERE $1::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = t.id AND ta.user_id = $1)
		GROUP BY t.status
	`

	rows, err := r.db.Query(ctx, query, scope, now)
	if err != nil {
		r.log.Error("Failed to count tasks", "error", err)
		return nil, err
	}
	defer rows.Close()

	counts := &domain.TaskCounts{ByStatus: map[string]int{
		domain.TaskStatusTodo:       0,
		domain.TaskStatusInProgress: 0,
		domain.TaskStatusDone:       0,
	}}
	for rows.Next() {
		var (
			status         string
			total, overdue int
		)
		if err := rows.Scan(&status, &total, &overdue); err != nil {
			r.log.Error("Failed to scan task counts", "error", err)
			return nil, err
		}
		counts.ByStatus[status] = total
		counts.Overdue += overdue
	}
	return counts, rows.Err()
}
