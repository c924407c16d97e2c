package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"project_portal/internal/config"
	"project_portal/internal/domain"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type stubAuth struct {
	tokens map[string]domain.Identity
}

func (a *stubAuth) Verify(_ context.Context, credential string) (domain.Identity, error) {
	id, ok := a.tokens[credential]
	if !ok {
		return domain.Identity{}, apperrors.ErrInvalidToken
	}
	return id, nil
}

type stubMembers struct {
	mu       sync.Mutex
	projects map[uuid.UUID]map[uuid.UUID]bool
}

func newStubMembers() *stubMembers {
	return &stubMembers{projects: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (m *stubMembers) add(project uuid.UUID, users ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projects[project] == nil {
		m.projects[project] = make(map[uuid.UUID]bool)
	}
	for _, u := range users {
		m.projects[project][u] = true
	}
}

func (m *stubMembers) remove(project uuid.UUID, users ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		delete(m.projects[project], u)
	}
}

func (m *stubMembers) CanAccess(_ context.Context, projectID uuid.UUID, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("%w: project not found", apperrors.ErrNotFound)
	}
	if identity.IsAdmin() || members[identity.UserID] {
		return nil
	}
	return fmt.Errorf("%w: not a project member", apperrors.ErrForbidden)
}

type memStore struct {
	mu       sync.Mutex
	next     int64
	messages []*domain.MessageView
	failWith error
}

func (s *memStore) Append(_ context.Context, projectID, senderID uuid.UUID, text string) (*domain.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is empty", apperrors.ErrValidation)
	}
	s.next++
	view := &domain.MessageView{
		ID:        s.next,
		Content:   text,
		Sender:    senderID,
		ProjectID: projectID,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, view)
	return view, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *memStore) ids() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.messages))
	for _, m := range s.messages {
		ids = append(ids, m.ID)
	}
	return ids
}

type fixture struct {
	gateway *Gateway
	hub     *Hub
	metrics *Metrics
	store   *memStore
	members *stubMembers
	auth    *stubAuth
}

func testConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		SendBuffer:     256,
		WriteWait:      time.Second,
		PongWait:       5 * time.Second,
		MaxMessageSize: 16 * 1024,
	}
}

func newFixture(t *testing.T, cfg config.RealtimeConfig) *fixture {
	t.Helper()
	log := logger.NewNop()
	metrics := NewMetrics(prometheus.NewRegistry())
	hub := NewHub(metrics, log)
	f := &fixture{
		hub:     hub,
		metrics: metrics,
		store:   &memStore{},
		members: newStubMembers(),
		auth:    &stubAuth{tokens: make(map[string]domain.Identity)},
	}
	f.gateway = NewGateway(hub, f.auth, f.members, f.store, cfg, log)
	return f
}

func identity(name string) domain.Identity {
	return domain.Identity{UserID: uuid.New(), Name: name, Role: domain.RoleEmployee}
}

// connect returns a session with its greeting already consumed.
func (f *fixture) connect(t *testing.T, id domain.Identity) *Session {
	t.Helper()
	s := f.gateway.Connect(id)
	frame := nextFrame(t, s)
	require.Equal(t, EventConnected, frame.Event)
	return s
}

type testFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func nextFrame(t *testing.T, s *Session) testFrame {
	t.Helper()
	select {
	case raw := <-s.Outbound():
		var frame testFrame
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame for session %s", s.ID())
		return testFrame{}
	}
}

// nextEvent skips frames until one named event arrives.
func nextEvent(t *testing.T, s *Session, event string) testFrame {
	t.Helper()
	for {
		frame := nextFrame(t, s)
		if frame.Event == event {
			return frame
		}
	}
}

func drain(s *Session) {
	for {
		select {
		case <-s.Outbound():
		default:
			return
		}
	}
}

func requireNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.Outbound():
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func dispatch(t *testing.T, f *fixture, s *Session, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	f.gateway.Dispatch(context.Background(), s, raw)
}

func decodeError(t *testing.T, frame testFrame) ErrorPayload {
	t.Helper()
	require.Equal(t, EventError, frame.Event)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	return payload
}

func decodeMessage(t *testing.T, frame testFrame) domain.MessageView {
	t.Helper()
	require.Equal(t, EventMessage, frame.Event)
	var view domain.MessageView
	require.NoError(t, json.Unmarshal(frame.Data, &view))
	return view
}

func decodeOnline(t *testing.T, frame testFrame) []domain.PresenceUser {
	t.Helper()
	require.Equal(t, EventOnlineUsers, frame.Event)
	var users []domain.PresenceUser
	require.NoError(t, json.Unmarshal(frame.Data, &users))
	return users
}
