package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"project_portal/internal/domain"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type taskRepository struct {
	db  DB
	log logger.Logger
}

func NewTaskRepository(db DB, log logger.Logger) TaskRepository {
	return &taskRepository{db: db, log: log}
}

const taskSelect = `
	SELECT t.id, t.project_id, t.title, t.description, t.priority, t.status, t.start_date,
	       t.deadline, t.progress, t.created_by, t.created_at, t.updated_at,
	       ARRAY(SELECT ta.user_id FROM task_assignees ta WHERE ta.task_id = t.id ORDER BY ta.user_id)
	FROM tasks t
`

func scanTask(row pgx.Row) (*domain.Task, error) {
	task := &domain.Task{}
	err := row.Scan(
		&task.ID, &task.ProjectID, &task.Title, &task.Description, &task.Priority, &task.Status,
		&task.StartDate, &task.Deadline, &task.Progress, &task.CreatedBy, &task.CreatedAt,
		&task.UpdatedAt, &task.Assignees,
	)
	if task.Assignees == nil {
		task.Assignees = []uuid.UUID{}
	}
	return task, err
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO tasks (project_id, title, description, priority, status, start_date, deadline, progress, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		task.ProjectID, task.Title, task.Description, task.Priority, task.Status,
		task.StartDate, task.Deadline, task.Progress, task.CreatedBy,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("%w: project does not exist", apperrors.ErrValidation)
		}
		r.log.Error("Failed to create task", "error", err)
		return err
	}

	if err := replaceAssignees(ctx, tx, task.ID, task.Assignees); err != nil {
		r.log.Error("Failed to assign task", "error", err, "task_id", task.ID)
		return err
	}

	return tx.Commit(ctx)
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := scanTask(r.db.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: task not found", apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get task", "error", err, "task_id", id)
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("t.project_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = t.id AND ta.user_id = $%d)", len(args)))
	}

	query := taskSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.created_at DESC, t.id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list tasks", "error", err)
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			r.log.Error("Failed to scan task", "error", err)
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE tasks
		SET title = $2, description = $3, priority = $4, status = $5, start_date = $6,
		    deadline = $7, progress = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = tx.QueryRow(ctx, query,
		task.ID, task.Title, task.Description, task.Priority, task.Status,
		task.StartDate, task.Deadline, task.Progress,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: task not found", apperrors.ErrNotFound)
		}
		r.log.Error("Failed to update task", "error", err, "task_id", task.ID)
		return err
	}

	if err := replaceAssignees(ctx, tx, task.ID, task.Assignees); err != nil {
		r.log.Error("Failed to reassign task", "error", err, "task_id", task.ID)
		return err
	}

	return tx.Commit(ctx)
}

func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete task", "error", err, "task_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task not found", apperrors.ErrNotFound)
	}
	return nil
}

func replaceAssignees(ctx context.Context, db execer, taskID uuid.UUID, userIDs []uuid.UUID) error {
	if _, err := db.Exec(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, taskID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `
		INSERT INTO task_assignees (task_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING
	`, taskID, userIDs)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return fmt.Errorf("%w: unknown assignee", apperrors.ErrValidation)
	}
	return err
}
