package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project_portal/internal/domain"
	apperrors "project_portal/pkg/errors"
)

func TestGatewayConnectGreetsSession(t *testing.T) {
	f := newFixture(t, testConfig())
	ana := identity("Ana")

	s := f.gateway.Connect(ana)
	frame := nextFrame(t, s)
	assert.Equal(t, EventConnected, frame.Event)
	assert.Contains(t, string(frame.Data), s.ID())
	assert.Contains(t, string(frame.Data), ana.UserID.String())
	assert.Equal(t, 1, f.hub.Registry().Sessions())
}

func TestGatewayAuthenticate(t *testing.T) {
	f := newFixture(t, testConfig())
	ana := identity("Ana")
	f.auth.tokens["good"] = ana

	id, err := f.gateway.Authenticate(context.Background(), " good ")
	require.NoError(t, err)
	assert.Equal(t, ana, id)

	_, err = f.gateway.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.gateway.Authenticate(context.Background(), "forged")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGatewayMessageScenario(t *testing.T) {
	f := newFixture(t, testConfig())
	proj1 := uuid.New()
	a, b := identity("A"), identity("B")
	f.members.add(proj1, a.UserID, b.UserID)

	sb := f.connect(t, b)
	dispatch(t, f, sb, EventJoinProject, proj1.String())
	sa := f.connect(t, a)
	dispatch(t, f, sa, EventJoinProject, proj1.String())
	drain(sa)
	drain(sb)

	dispatch(t, f, sa, EventSendMessage, map[string]string{
		"content":   "hello",
		"projectId": proj1.String(),
		"sender":    a.UserID.String(),
	})

	got := decodeMessage(t, nextFrame(t, sb))
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, a.UserID, got.Sender)
	assert.Equal(t, proj1, got.ProjectID)

	// The originator receives its own message too.
	assert.Equal(t, got, decodeMessage(t, nextFrame(t, sa)))
}

func TestGatewayDisconnectWithoutLeaveUpdatesPresence(t *testing.T) {
	f := newFixture(t, testConfig())
	proj1 := uuid.New()
	a, b := identity("A"), identity("B")
	f.members.add(proj1, a.UserID, b.UserID)

	sa := f.connect(t, a)
	sb := f.connect(t, b)
	dispatch(t, f, sa, EventJoinProject, proj1.String())
	dispatch(t, f, sb, EventJoinProject, proj1.String())
	drain(sb)

	f.gateway.Disconnect(sa)

	assert.Equal(t, EventUserLeft, nextFrame(t, sb).Event)
	online := decodeOnline(t, nextFrame(t, sb))
	assert.Equal(t, []domain.PresenceUser{{ID: b.UserID, Name: "B"}}, online)
	assert.Equal(t, online, f.hub.Online(proj1))
	assert.Equal(t, 1, f.hub.Registry().Sessions())

	select {
	case <-sa.Done():
	default:
		t.Fatal("disconnected session still open")
	}

	// Idempotent.
	f.gateway.Disconnect(sa)
	requireNoFrame(t, sb)
}

func TestGatewaySendToUnjoinedRoomIsForbidden(t *testing.T) {
	f := newFixture(t, testConfig())
	proj2 := uuid.New()
	intruder, member := identity("Eve"), identity("Bob")
	f.members.add(proj2, member.UserID)

	sm := f.connect(t, member)
	dispatch(t, f, sm, EventJoinProject, proj2.String())
	drain(sm)

	si := f.connect(t, intruder)
	dispatch(t, f, si, EventSendMessage, map[string]string{"content": "hi", "projectId": proj2.String()})

	payload := decodeError(t, nextFrame(t, si))
	assert.Equal(t, apperrors.CodeForbidden, payload.Code)
	assert.Equal(t, EventSendMessage, payload.Request)
	assert.Equal(t, 0, f.store.count())
	requireNoFrame(t, sm)
}

func TestGatewayJoinChecksMembership(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	eve := identity("Eve")
	f.members.add(project)

	s := f.connect(t, eve)
	dispatch(t, f, s, EventJoinProject, project.String())
	assert.Equal(t, apperrors.CodeForbidden, decodeError(t, nextFrame(t, s)).Code)

	dispatch(t, f, s, EventJoinProject, uuid.New().String())
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, nextFrame(t, s)).Code)

	dispatch(t, f, s, EventJoinProject, "not-a-uuid")
	assert.Equal(t, apperrors.CodeValidation, decodeError(t, nextFrame(t, s)).Code)

	assert.Equal(t, 0, f.hub.Registry().Rooms())

	admin := domain.Identity{UserID: uuid.New(), Name: "Root", Role: domain.RoleAdmin}
	sa := f.connect(t, admin)
	dispatch(t, f, sa, EventJoinProject, project.String())
	assert.Equal(t, EventUserJoined, nextFrame(t, sa).Event)
}

func TestGatewayRejoinRefreshesOnlyCaller(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a, b := identity("A"), identity("B")
	f.members.add(project, a.UserID, b.UserID)

	sa := f.connect(t, a)
	sb := f.connect(t, b)
	dispatch(t, f, sa, EventJoinProject, project.String())
	dispatch(t, f, sb, EventJoinProject, project.String())
	drain(sa)
	drain(sb)

	dispatch(t, f, sa, EventJoinProject, project.String())
	assert.Len(t, decodeOnline(t, nextFrame(t, sa)), 2)
	requireNoFrame(t, sb)
}

func TestGatewayPersistenceFailureReachesSenderOnly(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a, b := identity("A"), identity("B")
	f.members.add(project, a.UserID, b.UserID)

	sa := f.connect(t, a)
	sb := f.connect(t, b)
	dispatch(t, f, sa, EventJoinProject, project.String())
	dispatch(t, f, sb, EventJoinProject, project.String())
	drain(sa)
	drain(sb)

	f.store.failWith = fmt.Errorf("%w: disk full", apperrors.ErrPersistence)
	dispatch(t, f, sa, EventSendMessage, map[string]string{"content": "lost", "projectId": project.String()})

	payload := decodeError(t, nextFrame(t, sa))
	assert.Equal(t, apperrors.CodePersistenceFailure, payload.Code)
	requireNoFrame(t, sa)
	requireNoFrame(t, sb)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.FramesSent.WithLabelValues(EventMessage)))
}

func TestGatewayEmptyMessageIsValidationError(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a := identity("A")
	f.members.add(project, a.UserID)

	s := f.connect(t, a)
	dispatch(t, f, s, EventJoinProject, project.String())
	drain(s)

	dispatch(t, f, s, EventSendMessage, map[string]string{"content": "   ", "projectId": project.String()})
	assert.Equal(t, apperrors.CodeValidation, decodeError(t, nextFrame(t, s)).Code)
	assert.Equal(t, 0, f.store.count())
}

func TestGatewayConcurrentSendsObservedInSameOrder(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()

	const senders, perSender = 4, 25
	var sessions []*Session
	for i := 0; i < senders; i++ {
		id := identity(fmt.Sprintf("sender-%d", i))
		f.members.add(project, id.UserID)
		s := f.connect(t, id)
		dispatch(t, f, s, EventJoinProject, project.String())
		sessions = append(sessions, s)
	}
	watchers := make([]*Session, 2)
	for i := range watchers {
		id := identity(fmt.Sprintf("watcher-%d", i))
		f.members.add(project, id.UserID)
		watchers[i] = f.connect(t, id)
		dispatch(t, f, watchers[i], EventJoinProject, project.String())
	}
	for _, s := range append(sessions, watchers...) {
		drain(s)
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := f.gateway.SendMessage(context.Background(), s, project, fmt.Sprintf("%d-%d", i, j))
				assert.NoError(t, err)
			}
		}(i, s)
	}
	wg.Wait()

	committed := f.store.ids()
	require.Len(t, committed, senders*perSender)
	for _, w := range watchers {
		var seen []int64
		for len(seen) < len(committed) {
			seen = append(seen, decodeMessage(t, nextEvent(t, w, EventMessage)).ID)
		}
		assert.Equal(t, committed, seen)
	}
}

func TestGatewayPublishMessageChecksAccess(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a, b := identity("A"), identity("B")
	f.members.add(project, b.UserID)

	sb := f.connect(t, b)
	dispatch(t, f, sb, EventJoinProject, project.String())
	drain(sb)

	_, err := f.gateway.PublishMessage(context.Background(), a, project, "nope")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	requireNoFrame(t, sb)

	view, err := f.gateway.PublishMessage(context.Background(), b, project, "from rest")
	require.NoError(t, err)
	assert.Equal(t, view.ID, decodeMessage(t, nextFrame(t, sb)).ID)
}

func TestGatewayRejectsUnknownAndMalformedFrames(t *testing.T) {
	f := newFixture(t, testConfig())
	s := f.connect(t, identity("A"))

	f.gateway.Dispatch(context.Background(), s, []byte("{not json"))
	assert.Equal(t, apperrors.CodeValidation, decodeError(t, nextFrame(t, s)).Code)

	dispatch(t, f, s, "dance", nil)
	payload := decodeError(t, nextFrame(t, s))
	assert.Equal(t, apperrors.CodeValidation, payload.Code)
	assert.Equal(t, "dance", payload.Request)
}

func TestGatewayRateLimitsInboundEvents(t *testing.T) {
	cfg := testConfig()
	cfg.EventsPerSecond = 0.001
	cfg.EventBurst = 1
	f := newFixture(t, cfg)
	project := uuid.New()
	a := identity("A")
	f.members.add(project, a.UserID)

	s := f.connect(t, a)
	dispatch(t, f, s, EventJoinProject, project.String())
	drain(s)

	dispatch(t, f, s, EventLeaveProject, project.String())
	assert.Equal(t, apperrors.CodeRateLimited, decodeError(t, nextFrame(t, s)).Code)
	assert.True(t, f.hub.Registry().IsMember(project, s))
}

func TestHubObserverSeesFanOut(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a := identity("A")
	f.members.add(project, a.UserID)

	var (
		mu     sync.Mutex
		events []Event
	)
	f.hub.AddObserver(ObserverFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))

	s := f.connect(t, a)
	dispatch(t, f, s, EventJoinProject, project.String())
	_, err := f.gateway.SendMessage(context.Background(), s, project, "hi")
	require.NoError(t, err)
	f.hub.BroadcastRoom(project, EventTaskDeleted, map[string]string{"id": "t1"})

	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Name)
		assert.Equal(t, project, e.Room)
	}
	assert.Equal(t, []string{EventOnlineUsers, EventMessage, EventTaskDeleted}, names)
	assert.Equal(t, 1, events[0].Online)
	assert.Equal(t, 1, events[1].Recipients)
}

func TestGatewayStoreErrorsAreNotRetried(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a := identity("A")
	f.members.add(project, a.UserID)

	s := f.connect(t, a)
	dispatch(t, f, s, EventJoinProject, project.String())

	f.store.failWith = errors.New("boom")
	_, err := f.gateway.SendMessage(context.Background(), s, project, "x")
	require.Error(t, err)
	assert.Equal(t, 0, f.store.count())

	// Unclassified failures are reported without internal detail.
	assert.Equal(t, apperrors.CodeInternal, errorPayload(EventSendMessage, err).Code)
	assert.Equal(t, "internal server error", errorPayload(EventSendMessage, err).Message)
}

func TestGatewaySendAfterAccessWithdrawnIsRejected(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a, b := identity("A"), identity("B")
	f.members.add(project, a.UserID, b.UserID)

	sa := f.connect(t, a)
	sb := f.connect(t, b)
	dispatch(t, f, sa, EventJoinProject, project.String())
	dispatch(t, f, sb, EventJoinProject, project.String())
	drain(sa)
	drain(sb)

	f.members.remove(project, b.UserID)
	dispatch(t, f, sb, EventSendMessage, map[string]string{"content": "still here?", "projectId": project.String()})

	assert.Equal(t, apperrors.CodeForbidden, decodeError(t, nextFrame(t, sb)).Code)
	assert.Equal(t, 0, f.store.count())
	assert.False(t, f.hub.Registry().IsMember(project, sb))

	assert.Equal(t, []domain.PresenceUser{{ID: a.UserID, Name: "A"}}, decodeOnline(t, nextEvent(t, sa, EventOnlineUsers)))
	requireNoFrame(t, sa)
}

func TestHubRevokeAccessEvictsSessions(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a, b := identity("A"), identity("B")
	boss := domain.Identity{UserID: uuid.New(), Name: "Boss", Role: domain.RoleAdmin}
	f.members.add(project, a.UserID, b.UserID)

	sa := f.connect(t, a)
	sb := f.connect(t, b)
	sboss := f.connect(t, boss)
	for _, s := range []*Session{sa, sb, sboss} {
		dispatch(t, f, s, EventJoinProject, project.String())
	}
	drain(sa)
	drain(sb)
	drain(sboss)

	assert.Equal(t, 1, f.hub.RevokeAccess(project, []uuid.UUID{b.UserID, boss.UserID}))
	assert.False(t, f.hub.Registry().IsMember(project, sb))
	assert.True(t, f.hub.Registry().IsMember(project, sboss), "admins keep access")

	frame := nextFrame(t, sb)
	assert.Equal(t, EventAccessRevoked, frame.Event)
	assert.Contains(t, string(frame.Data), project.String())

	left := nextEvent(t, sa, EventUserLeft)
	assert.Contains(t, string(left.Data), b.UserID.String())
	drain(sa)

	_, err := f.gateway.SendMessage(context.Background(), sb, project, "hello?")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, 0, f.store.count())

	f.hub.BroadcastRoom(project, EventTaskCreated, map[string]string{"id": "t1"})
	assert.Equal(t, EventTaskCreated, nextFrame(t, sa).Event)
	requireNoFrame(t, sb)

	assert.Equal(t, 0, f.hub.RevokeAccess(project, nil))
}

func TestHubCloseRoomEvictsEveryone(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()
	a, b := identity("A"), identity("B")
	f.members.add(project, a.UserID, b.UserID)

	var (
		mu    sync.Mutex
		names []string
	)
	f.hub.AddObserver(ObserverFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, e.Name)
	}))

	sa := f.connect(t, a)
	sb := f.connect(t, b)
	dispatch(t, f, sa, EventJoinProject, project.String())
	dispatch(t, f, sb, EventJoinProject, project.String())
	drain(sa)
	drain(sb)

	assert.Equal(t, 2, f.hub.CloseRoom(project))
	assert.Equal(t, EventProjectDeleted, nextFrame(t, sa).Event)
	assert.Equal(t, EventProjectDeleted, nextFrame(t, sb).Event)
	assert.Equal(t, 0, f.hub.Registry().Rooms())
	assert.Equal(t, 2, f.hub.Registry().Sessions())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, names)
	assert.Equal(t, EventProjectDeleted, names[len(names)-1])
}

func TestHubObservesPresenceInMembershipOrder(t *testing.T) {
	f := newFixture(t, testConfig())
	project := uuid.New()

	var (
		mu     sync.Mutex
		online []int
	)
	f.hub.AddObserver(ObserverFunc(func(e Event) {
		if e.Name != EventOnlineUsers {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		online = append(online, e.Online)
	}))

	const users = 20
	sessions := make([]*Session, users)
	for i := range sessions {
		id := identity(fmt.Sprintf("user-%02d", i))
		f.members.add(project, id.UserID)
		sessions[i] = f.gateway.Connect(id)
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			assert.NoError(t, f.gateway.JoinProject(context.Background(), s, project))
			if i%2 == 0 {
				f.gateway.LeaveProject(s, project)
			}
		}(i, s)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, online, users+users/2)
	assert.Equal(t, len(f.hub.Online(project)), online[len(online)-1])
	assert.Equal(t, users/2, online[len(online)-1])
}
