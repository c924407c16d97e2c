package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"project_portal/internal/domain"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	List(ctx context.Context) ([]*domain.Project, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMembers(ctx context.Context, projectID uuid.UUID, userIDs []uuid.UUID) error
}

type projectRepository struct {
	db  DB
	log logger.Logger
}

func NewProjectRepository(db DB, log logger.Logger) ProjectRepository {
	return &projectRepository{db: db, log: log}
}

const projectSelect = `
	SELECT p.id, p.name, p.description, p.deadline, p.created_by, p.created_at,
	       ARRAY(SELECT pm.user_id FROM project_members pm WHERE pm.project_id = p.id ORDER BY pm.added_at, pm.user_id)
	FROM projects p
`

func scanProject(row pgx.Row) (*domain.Project, error) {
	project := &domain.Project{}
	err := row.Scan(
		&project.ID, &project.Name, &project.Description, &project.Deadline,
		&project.CreatedBy, &project.CreatedAt, &project.Members,
	)
	if project.Members == nil {
		project.Members = []uuid.UUID{}
	}
	return project, err
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO projects (name, description, deadline, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		project.Name, project.Description, project.Deadline, project.CreatedBy,
	).Scan(&project.ID, &project.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("%w: creator does not exist", apperrors.ErrValidation)
		}
		r.log.Error("Failed to create project", "error", err)
		return err
	}

	if err := insertMembers(ctx, tx, project.ID, project.Members); err != nil {
		r.log.Error("Failed to add project members", "error", err, "project_id", project.ID)
		return err
	}

	return tx.Commit(ctx)
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	project, err := scanProject(r.db.QueryRow(ctx, projectSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project not found", apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get project", "error", err, "project_id", id)
		return nil, err
	}
	return project, nil
}

func (r *projectRepository) List(ctx context.Context) ([]*domain.Project, error) {
	return r.list(ctx, projectSelect+` ORDER BY p.created_at DESC, p.id`)
}

func (r *projectRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	query := projectSelect + `
		WHERE p.created_by = $1
		   OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $1)
		ORDER BY p.created_at DESC, p.id
	`
	return r.list(ctx, query, userID)
}

func (r *projectRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Project, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list projects", "error", err)
		return nil, err
	}
	defer rows.Close()

	projects := make([]*domain.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			r.log.Error("Failed to scan project", "error", err)
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Update rewrites the project row and replaces its member set.
func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE projects SET name = $2, description = $3, deadline = $4
		WHERE id = $1
	`, project.ID, project.Name, project.Description, project.Deadline)
	if err != nil {
		r.log.Error("Failed to update project", "error", err, "project_id", project.ID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project not found", apperrors.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1 AND NOT (user_id = ANY($2))`,
		project.ID, project.Members); err != nil {
		r.log.Error("Failed to prune project members", "error", err, "project_id", project.ID)
		return err
	}
	if err := insertMembers(ctx, tx, project.ID, project.Members); err != nil {
		r.log.Error("Failed to add project members", "error", err, "project_id", project.ID)
		return err
	}

	return tx.Commit(ctx)
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete project", "error", err, "project_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project not found", apperrors.ErrNotFound)
	}
	return nil
}

func (r *projectRepository) AddMembers(ctx context.Context, projectID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := insertMembers(ctx, r.db, projectID, userIDs); err != nil {
		r.log.Error("Failed to add project members", "error", err, "project_id", projectID)
		return err
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertMembers(ctx context.Context, db execer, projectID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING
	`, projectID, userIDs)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return fmt.Errorf("%w: unknown member", apperrors.ErrValidation)
	}
	return err
}
