package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"project_portal/internal/config"
	"project_portal/internal/domain"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

// Authenticator resolves a bearer credential to an identity.
type Authenticator interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}

// MembershipChecker returns nil when identity may enter the project's room,
// ErrNotFound for unknown projects and ErrForbidden otherwise.
type MembershipChecker interface {
	CanAccess(ctx context.Context, projectID uuid.UUID, identity domain.Identity) error
}

// MessageStore durably appends chat messages.
type MessageStore interface {
	Append(ctx context.Context, projectID, senderID uuid.UUID, text string) (*domain.MessageView, error)
}

// Gateway implements the per-connection protocol on top of the Hub.
type Gateway struct {
	hub     *Hub
	auth    Authenticator
	members MembershipChecker
	store   MessageStore
	cfg     config.RealtimeConfig
	log     logger.Logger
}

func NewGateway(hub *Hub, auth Authenticator, members MembershipChecker, store MessageStore, cfg config.RealtimeConfig, log logger.Logger) *Gateway {
	return &Gateway{
		hub:     hub,
		auth:    auth,
		members: members,
		store:   store,
		cfg:     cfg,
		log:     log,
	}
}

// Authenticate is called before the transport upgrade; any failure is ErrUnauthorized.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing credential", apperrors.ErrUnauthorized)
	}
	identity, err := g.auth.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return domain.Identity{}, err
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	return identity, nil
}

// Connect registers a session for an authenticated identity and greets it.
func (g *Gateway) Connect(identity domain.Identity) *Session {
	var limiter *rate.Limiter
	if g.cfg.EventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(g.cfg.EventsPerSecond), g.cfg.EventBurst)
	}

	s := newSession(identity, g.cfg.SendBuffer, limiter)
	g.hub.registry.Register(s)
	g.hub.registry.Send(s, EventConnected, ConnectedPayload{ConnectionID: s.ID(), UserID: identity.UserID})

	g.log.Info("Session connected", "connection_id", s.ID(), "user_id", identity.UserID)
	return s
}

// Disconnect releases every room membership of s. It is unconditional and idempotent.
func (g *Gateway) Disconnect(s *Session) {
	departures := g.hub.registry.Unregister(s)
	s.Close()
	for _, d := range departures {
		g.hub.left(d.Room, s.Identity(), d.LastForUser)
	}
	if departures != nil {
		g.log.Info("Session disconnected", "connection_id", s.ID(), "user_id", s.UserID(), "rooms", len(departures))
	}
}

// Dispatch handles one inbound frame. Errors are reported to s only.
func (g *Gateway) Dispatch(ctx context.Context, s *Session, raw []byte) {
	frame, err := decodeFrame(raw)
	if err != nil {
		g.fail(s, "", err)
		return
	}
	if !s.allow() {
		g.fail(s, frame.Event, fmt.Errorf("%w: too many events", apperrors.ErrRateLimited))
		return
	}

	switch frame.Event {
	case EventJoinProject:
		var projectID uuid.UUID
		if projectID, err = parseProjectRef(frame.Data); err == nil {
			err = g.JoinProject(ctx, s, projectID)
		}
	case EventLeaveProject:
		var projectID uuid.UUID
		if projectID, err = parseProjectRef(frame.Data); err == nil {
			g.LeaveProject(s, projectID)
		}
	case EventSendMessage:
		err = g.handleSendMessage(ctx, s, frame.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", apperrors.ErrValidation, frame.Event)
	}

	if err != nil {
		g.fail(s, frame.Event, err)
		return
	}
	g.hub.metrics.InboundEvents.WithLabelValues(frame.Event, "ok").Inc()
}

func (g *Gateway) handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: malformed message", apperrors.ErrValidation)
	}
	projectID, err := parseProjectID(payload.ProjectID)
	if err != nil {
		return err
	}
	_, err = g.SendMessage(ctx, s, projectID, payload.Content)
	return err
}

// JoinProject adds s to the project's room after checking access.
func (g *Gateway) JoinProject(ctx context.Context, s *Session, projectID uuid.UUID) error {
	if err := g.members.CanAccess(ctx, projectID, s.Identity()); err != nil {
		return err
	}

	joined, first := g.hub.registry.Join(projectID, s)
	if !joined {
		// Already in the room: refresh this session's view only.
		g.hub.registry.Send(s, EventOnlineUsers, g.hub.Online(projectID))
		return nil
	}

	g.log.Debug("Joined project room", "connection_id", s.ID(), "project_id", projectID)
	g.hub.joined(projectID, s.Identity(), first)
	return nil
}

func (g *Gateway) LeaveProject(s *Session, projectID uuid.UUID) {
	left, last := g.hub.registry.Leave(projectID, s)
	if !left {
		return
	}
	g.log.Debug("Left project room", "connection_id", s.ID(), "project_id", projectID)
	g.hub.left(projectID, s.Identity(), last)
}

// SendMessage appends text authored by the session's user and fans it out to the room.
// The session must be in the room and still have access to the project; a session
// whose access was withdrawn is evicted from the room.
func (g *Gateway) SendMessage(ctx context.Context, s *Session, projectID uuid.UUID, text string) (*domain.MessageView, error) {
	if !g.hub.registry.IsMember(projectID, s) {
		return nil, errNotJoined
	}
	if err := g.members.CanAccess(ctx, projectID, s.Identity()); err != nil {
		if errors.Is(err, apperrors.ErrForbidden) || errors.Is(err, apperrors.ErrNotFound) {
			g.LeaveProject(s, projectID)
		}
		return nil, err
	}
	return g.publish(ctx, s.Identity(), projectID, text, func() error {
		if !g.hub.registry.IsMember(projectID, s) {
			return errNotJoined
		}
		return nil
	})
}

// PublishMessage is the connectionless path used by the REST API.
func (g *Gateway) PublishMessage(ctx context.Context, identity domain.Identity, projectID uuid.UUID, text string) (*domain.MessageView, error) {
	if err := g.members.CanAccess(ctx, projectID, identity); err != nil {
		return nil, err
	}
	return g.publish(ctx, identity, projectID, text, nil)
}

var errNotJoined = fmt.Errorf("%w: join the project before sending", apperrors.ErrForbidden)

// publish holds the room's sequencing lock across append and broadcast so every
// member sees messages in commit order. Nothing is broadcast when the append fails.
// admit, when set, is rechecked under the lock before appending.
func (g *Gateway) publish(ctx context.Context, identity domain.Identity, projectID uuid.UUID, text string, admit func() error) (*domain.MessageView, error) {
	var (
		view *domain.MessageView
		err  error
	)
	g.hub.sequence(projectID, func() {
		if admit != nil {
			if err = admit(); err != nil {
				return
			}
		}
		start := time.Now()
		view, err = g.store.Append(ctx, projectID, identity.UserID, text)
		g.hub.metrics.AppendDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return
		}
		g.hub.BroadcastRoom(projectID, EventMessage, view)
	})
	return view, err
}

func (g *Gateway) fail(s *Session, request string, err error) {
	code := apperrors.Code(err)
	label := request
	if label == "" {
		label = "invalid"
	}
	g.hub.metrics.InboundEvents.WithLabelValues(label, code).Inc()

	if code == apperrors.CodeInternal || code == apperrors.CodePersistenceFailure {
		g.log.Error("Realtime request failed", "error", err, "event", request, "connection_id", s.ID())
	} else {
		g.log.Debug("Realtime request rejected", "error", err, "event", request, "connection_id", s.ID())
	}
	g.hub.registry.Send(s, EventError, errorPayload(request, err))
}
