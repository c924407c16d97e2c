package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"project_portal/internal/domain"
	"project_portal/internal/realtime"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if u, ok := args.Get(0).([]*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockProjectRepository struct {
	mock.Mock
}

func (m *mockProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *mockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*domain.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectRepository) List(ctx context.Context) ([]*domain.Project, error) {
	args := m.Called(ctx)
	if p, ok := args.Get(0).([]*domain.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).([]*domain.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *mockProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProjectRepository) AddMembers(ctx context.Context, projectID uuid.UUID, userIDs []uuid.UUID) error {
	return m.Called(ctx, projectID, userIDs).Error(0)
}

type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*domain.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTaskRepository) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	args := m.Called(ctx, filter)
	if t, ok := args.Get(0).([]*domain.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockMessageRepository struct {
	mock.Mock
}

func (m *mockMessageRepository) Append(ctx context.Context, projectID, senderID uuid.UUID, text string) (*domain.MessageView, error) {
	args := m.Called(ctx, projectID, senderID, text)
	if v, ok := args.Get(0).(*domain.MessageView); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMessageRepository) History(ctx context.Context, projectID uuid.UUID) ([]*domain.MessageView, error) {
	args := m.Called(ctx, projectID)
	if v, ok := args.Get(0).([]*domain.MessageView); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStatsRepository struct {
	mock.Mock
}

func (m *mockStatsRepository) ProjectCount(ctx context.Context, scope *uuid.UUID) (int, error) {
	args := m.Called(ctx, scope)
	return args.Int(0), args.Error(1)
}

func (m *mockStatsRepository) TaskCounts(ctx context.Context, scope *uuid.UUID, now time.Time) (*domain.TaskCounts, error) {
	args := m.Called(ctx, scope, now)
	if c, ok := args.Get(0).(*domain.TaskCounts); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) CreateLog(ctx context.Context, log *domain.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *mockAuditRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*domain.AuditLog, error) {
	args := m.Called(ctx, projectID, limit)
	if l, ok := args.Get(0).([]*domain.AuditLog); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRateLimitRepository struct {
	mock.Mock
}

func (m *mockRateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRateLimitRepository) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// auditRecorder is an in-memory AuditService.
type auditRecorder struct {
	mu     sync.Mutex
	events []string
}

func (a *auditRecorder) LogEvent(_ context.Context, _ *uuid.UUID, _ string, _ *uuid.UUID, eventType string, _ map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, eventType)
	return nil
}

func (a *auditRecorder) Record(ctx context.Context, actorUserID *uuid.UUID, actorRole string, projectID *uuid.UUID, eventType string, payload map[string]interface{}) {
	_ = a.LogEvent(ctx, actorUserID, actorRole, projectID, eventType, payload)
}

func (a *auditRecorder) ListByProject(context.Context, uuid.UUID, int) ([]*domain.AuditLog, error) {
	return []*domain.AuditLog{}, nil
}

func (a *auditRecorder) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

type sentEvent struct {
	room    uuid.UUID
	users   []uuid.UUID
	event   string
	payload any
}

// notifierRecorder captures fan-out requests instead of delivering them.
type notifierRecorder struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (n *notifierRecorder) BroadcastRoom(projectID uuid.UUID, event string, payload any) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{room: projectID, event: event, payload: payload})
	return 1
}

func (n *notifierRecorder) SendToUsers(userIDs []uuid.UUID, event string, payload any) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{users: userIDs, event: event, payload: payload})
	return len(userIDs)
}

func (n *notifierRecorder) RevokeAccess(projectID uuid.UUID, userIDs []uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{room: projectID, users: userIDs, event: realtime.EventAccessRevoked})
	return len(userIDs)
}

func (n *notifierRecorder) CloseRoom(projectID uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{room: projectID, event: realtime.EventProjectDeleted})
	return 0
}

func (n *notifierRecorder) events() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.sent...)
}

type presenceStub map[uuid.UUID][]domain.PresenceUser

func (p presenceStub) Online(projectID uuid.UUID) []domain.PresenceUser {
	if users, ok := p[projectID]; ok {
		return users
	}
	return []domain.PresenceUser{}
}

func employee(name string) domain.Identity {
	return domain.Identity{UserID: uuid.New(), Name: name, Role: domain.RoleEmployee}
}

func admin(name string) domain.Identity {
	return domain.Identity{UserID: uuid.New(), Name: name, Role: domain.RoleAdmin}
}
