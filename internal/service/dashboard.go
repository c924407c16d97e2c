package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/internal/realtime"
	"project_portal/internal/repository"
	"project_portal/pkg/logger"
)

// DashboardService joins persisted counts with live room activity. It observes
// the realtime hub to keep per-project counters since process start.
type DashboardService interface {
	realtime.Observer
	Summary(ctx context.Context, actor domain.Identity) (*domain.DashboardSummary, error)
}

type dashboardService struct {
	statsRepo   repository.StatsRepository
	projectRepo repository.ProjectRepository

	mu       sync.Mutex
	activity map[uuid.UUID]*domain.ProjectActivity

	now func() time.Time
	log logger.Logger
}

func NewDashboardService(statsRepo repository.StatsRepository, projectRepo repository.ProjectRepository, log logger.Logger) DashboardService {
	return &dashboardService{
		statsRepo:   statsRepo,
		projectRepo: projectRepo,
		activity:    make(map[uuid.UUID]*domain.ProjectActivity),
		now:         time.Now,
		log:         log,
	}
}

func (s *dashboardService) Observe(e realtime.Event) {
	if e.Room == uuid.Nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Name == realtime.EventProjectDeleted {
		delete(s.activity, e.Room)
		return
	}

	entry, ok := s.activity[e.Room]
	if !ok {
		entry = &domain.ProjectActivity{ProjectID: e.Room}
		s.activity[e.Room] = entry
	}
	switch e.Name {
	case realtime.EventMessage:
		entry.Messages++
	case realtime.EventTaskCreated, realtime.EventTaskUpdated, realtime.EventTaskDeleted:
		entry.TaskEvents++
	case realtime.EventOnlineUsers:
		entry.OnlineUsers = e.Online
	}
}

func (s *dashboardService) Summary(ctx context.Context, actor domain.Identity) (*domain.DashboardSummary, error) {
	var scope *uuid.UUID
	if !actor.IsAdmin() {
		self := actor.UserID
		scope = &self
	}

	projects, err := s.statsRepo.ProjectCount(ctx, scope)
	if err != nil {
		return nil, err
	}
	counts, err := s.statsRepo.TaskCounts(ctx, scope, s.now())
	if err != nil {
		return nil, err
	}

	visible, err := s.visibleProjects(ctx, actor)
	if err != nil {
		return nil, err
	}

	return &domain.DashboardSummary{
		Projects:     projects,
		TasksByState: counts.ByStatus,
		OverdueTasks: counts.Overdue,
		Activity:     s.snapshot(visible),
	}, nil
}

// visibleProjects returns nil for admins, meaning every project is visible.
func (s *dashboardService) visibleProjects(ctx context.Context, actor domain.Identity) (map[uuid.UUID]struct{}, error) {
	if actor.IsAdmin() {
		return nil, nil
	}
	projects, err := s.projectRepo.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	visible := make(map[uuid.UUID]struct{}, len(projects))
	for _, p := range projects {
		visible[p.ID] = struct{}{}
	}
	return visible, nil
}

func (s *dashboardService) snapshot(visible map[uuid.UUID]struct{}) []domain.ProjectActivity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ProjectActivity, 0, len(s.activity))
	for id, entry := range s.activity {
		if visible != nil {
			if _, ok := visible[id]; !ok {
				continue
			}
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Messages != out[j].Messages {
			return out[i].Messages > out[j].Messages
		}
		return out[i].ProjectID.String() < out[j].ProjectID.String()
	})
	return out
}
