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

type ProjectService interface {
	Create(ctx context.Context, actor domain.Identity, input domain.CreateProjectInput) (*domain.Project, error)
	List(ctx context.Context, actor domain.Identity) ([]*domain.Project, error)
	Get(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.Project, error)
	Update(ctx context.Context, actor domain.Identity, id uuid.UUID, input domain.UpdateProjectInput) (*domain.Project, error)
	Delete(ctx context.Context, actor domain.Identity, id uuid.UUID) error
	// CanAccess returns ErrNotFound for unknown projects and ErrForbidden for non-members.
	CanAccess(ctx context.Context, projectID uuid.UUID, identity domain.Identity) error
	Online(ctx context.Context, actor domain.Identity, id uuid.UUID) ([]domain.PresenceUser, error)
	Activity(ctx context.Context, actor domain.Identity, id uuid.UUID, limit int) ([]*domain.AuditLog, error)
}

type projectService struct {
	projectRepo repository.ProjectRepository
	audit       AuditService
	notifier    Notifier
	presence    PresenceReader
	log         logger.Logger
}

func NewProjectService(projectRepo repository.ProjectRepository, audit AuditService, notifier Notifier, presence PresenceReader, log logger.Logger) ProjectService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &projectService{
		projectRepo: projectRepo,
		audit:       audit,
		notifier:    notifier,
		presence:    presence,
		log:         log,
	}
}

func (s *projectService) Create(ctx context.Context, actor domain.Identity, input domain.CreateProjectInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", apperrors.ErrValidation)
	}

	project := &domain.Project{
		Name:        name,
		Description: input.Description,
		Deadline:    input.Deadline,
		Members:     withMember(input.Members, actor.UserID),
		CreatedBy:   actor.UserID,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.UserID, actor.Role, &project.ID, domain.EventTypeProjectCreated, map[string]interface{}{
		"name":    project.Name,
		"members": len(project.Members),
	})
	delivered := s.notifier.SendToUsers(project.Members, realtime.EventProjectCreated, project)
	s.log.Info("Project created", "project_id", project.ID, "created_by", actor.UserID, "notified", delivered)

	return project, nil
}

func (s *projectService) List(ctx context.Context, actor domain.Identity) ([]*domain.Project, error) {
	if actor.IsAdmin() {
		return s.projectRepo.List(ctx)
	}
	return s.projectRepo.ListForUser(ctx, actor.UserID)
}

func (s *projectService) Get(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.Project, error) {
	return s.accessible(ctx, id, actor)
}

func (s *projectService) Update(ctx context.Context, actor domain.Identity, id uuid.UUID, input domain.UpdateProjectInput) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.CanModify(actor) {
		return nil, fmt.Errorf("%w: only the creator or an admin can update a project", apperrors.ErrForbidden)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: project name is required", apperrors.ErrValidation)
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = input.Description
	}
	if input.Deadline != nil {
		project.Deadline = input.Deadline
	}
	var removed []uuid.UUID
	if input.Members != nil {
		members := withMember(*input.Members, project.CreatedBy)
		removed = without(project.Members, members)
		project.Members = members
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.UserID, actor.Role, &project.ID, domain.EventTypeProjectUpdated, nil)
	if len(removed) > 0 {
		evicted := s.notifier.RevokeAccess(project.ID, removed)
		s.log.Info("Project members removed", "project_id", project.ID, "removed", len(removed), "sessions_evicted", evicted)
	}
	return project, nil
}

func (s *projectService) Delete(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !project.CanModify(actor) {
		return fmt.Errorf("%w: only the creator or an admin can delete a project", apperrors.ErrForbidden)
	}

	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, &actor.UserID, actor.Role, &id, domain.EventTypeProjectDeleted, map[string]interface{}{
		"name": project.Name,
	})
	evicted := s.notifier.CloseRoom(id)
	s.log.Info("Project deleted", "project_id", id, "deleted_by", actor.UserID, "sessions_evicted", evicted)
	return nil
}

func (s *projectService) CanAccess(ctx context.Context, projectID uuid.UUID, identity domain.Identity) error {
	_, err := s.accessible(ctx, projectID, identity)
	return err
}

func (s *projectService) Online(ctx context.Context, actor domain.Identity, id uuid.UUID) ([]domain.PresenceUser, error) {
	if _, err := s.accessible(ctx, id, actor); err != nil {
		return nil, err
	}
	if s.presence == nil {
		return []domain.PresenceUser{}, nil
	}
	return s.presence.Online(id), nil
}

func (s *projectService) Activity(ctx context.Context, actor domain.Identity, id uuid.UUID, limit int) ([]*domain.AuditLog, error) {
	if _, err := s.accessible(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.audit.ListByProject(ctx, id, limit)
}

func (s *projectService) accessible(ctx context.Context, id uuid.UUID, actor domain.Identity) (*domain.Project, error) {
	return loadAccessibleProject(ctx, s.projectRepo, id, actor)
}

func loadAccessibleProject(ctx context.Context, repo repository.ProjectRepository, id uuid.UUID, actor domain.Identity) (*domain.Project, error) {
	project, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.CanAccess(actor) {
		return nil, fmt.Errorf("%w: not a member of this project", apperrors.ErrForbidden)
	}
	return project, nil
}

// withMember returns ids deduplicated in order, with required appended when absent.
func withMember(ids []uuid.UUID, required uuid.UUID) []uuid.UUID {
	return dedupe(append(append([]uuid.UUID{}, ids...), required))
}

// without returns the ids of from that are absent from keep.
func without(from, keep []uuid.UUID) []uuid.UUID {
	kept := make(map[uuid.UUID]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range from {
		if _, ok := kept[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
