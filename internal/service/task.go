package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/internal/realtime"
	"project_portal/internal/repository"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type TaskService interface {
	Create(ctx context.Context, actor domain.Identity, input domain.CreateTaskInput) (*domain.Task, error)
	// ListByProject requires access to the project and honours status/assignee filters.
	ListByProject(ctx context.Context, actor domain.Identity, projectID uuid.UUID, filter domain.TaskFilter) ([]*domain.Task, error)
	// List spans all projects; non-admins only ever see tasks assigned to them.
	List(ctx context.Context, actor domain.Identity, filter domain.TaskFilter) ([]*domain.Task, error)
	Get(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.Task, error)
	Update(ctx context.Context, actor domain.Identity, id uuid.UUID, input domain.UpdateTaskInput) (*domain.Task, error)
	Delete(ctx context.Context, actor domain.Identity, id uuid.UUID) error
}

type taskDeletedPayload struct {
	ID uuid.UUID `json:"id"`
}

type taskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	audit       AuditService
	notifier    Notifier
	log         logger.Logger
}

func NewTaskService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository, audit AuditService, notifier Notifier, log logger.Logger) TaskService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &taskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		audit:       audit,
		notifier:    notifier,
		log:         log,
	}
}

func (s *taskService) Create(ctx context.Context, actor domain.Identity, input domain.CreateTaskInput) (*domain.Task, error) {
	task := &domain.Task{
		ProjectID:   input.ProjectID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Assignees:   dedupe(input.Assignees),
		Priority:    input.Priority,
		Status:      input.Status,
		StartDate:   input.StartDate,
		Deadline:    input.Deadline,
		CreatedBy:   actor.UserID,
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}
	if input.Progress != nil {
		task.Progress = *input.Progress
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if _, err := loadAccessibleProject(ctx, s.projectRepo, task.ProjectID, actor); err != nil {
		return nil, err
	}
	if len(task.Assignees) > 0 {
		if err := s.projectRepo.AddMembers(ctx, task.ProjectID, task.Assignees); err != nil {
			return nil, err
		}
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.UserID, actor.Role, &task.ProjectID, domain.EventTypeTaskCreated, map[string]interface{}{
		"task_id": task.ID,
		"title":   task.Title,
	})
	s.notifier.BroadcastRoom(task.ProjectID, realtime.EventTaskCreated, task)
	return task, nil
}

func (s *taskService) ListByProject(ctx context.Context, actor domain.Identity, projectID uuid.UUID, filter domain.TaskFilter) ([]*domain.Task, error) {
	if filter.Status != "" && !domain.ValidTaskStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, filter.Status)
	}
	if _, err := loadAccessibleProject(ctx, s.projectRepo, projectID, actor); err != nil {
		return nil, err
	}
	filter.ProjectID = &projectID
	return s.taskRepo.List(ctx, filter)
}

func (s *taskService) List(ctx context.Context, actor domain.Identity, filter domain.TaskFilter) ([]*domain.Task, error) {
	if filter.Status != "" && !domain.ValidTaskStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, filter.Status)
	}
	if !actor.IsAdmin() {
		self := actor.UserID
		filter.AssigneeID = &self
	}
	return s.taskRepo.List(ctx, filter)
}

func (s *taskService) Get(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := loadAccessibleProject(ctx, s.projectRepo, task.ProjectID, actor); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) Update(ctx context.Context, actor domain.Identity, id uuid.UUID, input domain.UpdateTaskInput) (*domain.Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = input.Description
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.StartDate != nil {
		task.StartDate = input.StartDate
	}
	if input.Deadline != nil {
		task.Deadline = input.Deadline
	}
	if input.Progress != nil {
		task.Progress = *input.Progress
	}
	var added []uuid.UUID
	if input.Assignees != nil {
		task.Assignees = dedupe(*input.Assignees)
		added = task.Assignees
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if len(added) > 0 {
		if err := s.projectRepo.AddMembers(ctx, task.ProjectID, added); err != nil {
			return nil, err
		}
	}
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.UserID, actor.Role, &task.ProjectID, domain.EventTypeTaskUpdated, map[string]interface{}{
		"task_id":  task.ID,
		"status":   task.Status,
		"progress": task.Progress,
	})
	s.notifier.BroadcastRoom(task.ProjectID, realtime.EventTaskUpdated, task)
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, &actor.UserID, actor.Role, &task.ProjectID, domain.EventTypeTaskDeleted, map[string]interface{}{
		"task_id": task.ID,
		"title":   task.Title,
	})
	s.notifier.BroadcastRoom(task.ProjectID, realtime.EventTaskDeleted, taskDeletedPayload{ID: id})
	return nil
}

func validateTask(task *domain.Task) error {
	switch {
	case task.Title == "":
		return fmt.Errorf("%w: task title is required", apperrors.ErrValidation)
	case task.ProjectID == uuid.Nil:
		return fmt.Errorf("%w: project is required", apperrors.ErrValidation)
	case !domain.ValidPriority(task.Priority):
		return fmt.Errorf("%w: unknown priority %q", apperrors.ErrValidation, task.Priority)
	case !domain.ValidTaskStatus(task.Status):
		return fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, task.Status)
	case task.Progress < 0 || task.Progress > 100:
		return fmt.Errorf("%w: progress must be between 0 and 100", apperrors.ErrValidation)
	case task.StartDate != nil && task.Deadline != nil && task.Deadline.Before(*task.StartDate):
		return fmt.Errorf("%w: deadline is before start date", apperrors.ErrValidation)
	}
	return nil
}
