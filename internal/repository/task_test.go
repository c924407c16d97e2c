package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project_portal/internal/domain"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

var taskColumns = []string{
	"id", "project_id", "title", "description", "priority", "status", "start_date",
	"deadline", "progress", "created_by", "created_at", "updated_at", "assignees",
}

func TestTaskListBuildsFilter(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTaskRepository(mock, logger.NewNop())

	projectID, assignee, creator := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`t.project_id = \$1 AND t.status = \$2 AND EXISTS .*ta.user_id = \$3`).
		WithArgs(projectID, domain.TaskStatusDone, assignee).
		WillReturnRows(mock.NewRows(taskColumns).AddRow(
			uuid.New(), projectID, "Ship", nil, domain.PriorityHigh, domain.TaskStatusDone, nil,
			nil, 100, creator, now, now, []uuid.UUID{assignee},
		))

	tasks, err := repo.List(context.Background(), domain.TaskFilter{
		ProjectID:  &projectID,
		Status:     domain.TaskStatusDone,
		AssigneeID: &assignee,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, []uuid.UUID{assignee}, tasks[0].Assignees)
	assert.Equal(t, 100, tasks[0].Progress)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskCreateReplacesAssignees(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTaskRepository(mock, logger.NewNop())

	taskID, assignee := uuid.New(), uuid.New()
	task := &domain.Task{
		ProjectID: uuid.New(),
		Title:     "Write docs",
		Priority:  domain.PriorityMedium,
		Status:    domain.TaskStatusTodo,
		Assignees: []uuid.UUID{assignee},
		CreatedBy: uuid.New(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO tasks").
		WillReturnRows(mock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(taskID, time.Now(), time.Now()))
	mock.ExpectExec("DELETE FROM task_assignees").
		WithArgs(taskID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO task_assignees").
		WithArgs(taskID, []uuid.UUID{assignee}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), task))
	assert.Equal(t, taskID, task.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskDeleteMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTaskRepository(mock, logger.NewNop())

	mock.ExpectExec("DELETE FROM tasks").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), apperrors.ErrNotFound)
}
