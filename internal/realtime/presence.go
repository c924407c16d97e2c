package realtime

import (
	"sort"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/pkg/logger"
)

// Presence derives online users from the registry. It keeps no state of its own.
type Presence struct {
	registry *Registry
	// observe, when set, sees each published online list under the registry lock.
	observe  func(Event)
	log      logger.Logger
}

func NewPresence(registry *Registry, log logger.Logger) *Presence {
	return &Presence{registry: registry, log: log}
}

// Online lists the distinct users in room, sorted by name then id.
func (p *Presence) Online(room uuid.UUID) []domain.PresenceUser {
	return onlineUsers(p.registry.MembersOf(room))
}

// Joined announces identity's arrival and publishes the new online list.
// It returns the list that was sent.
func (p *Presence) Joined(room uuid.UUID, who domain.Identity, firstForUser bool) []domain.PresenceUser {
	if firstForUser {
		p.broadcast(room, EventUserJoined, userJoinedPayload{ID: who.UserID, Name: who.Name})
	}
	return p.publish(room)
}

// Left announces identity's departure and publishes the new online list.
func (p *Presence) Left(room uuid.UUID, who domain.Identity, lastForUser bool) []domain.PresenceUser {
	if lastForUser {
		p.broadcast(room, EventUserLeft, userLeftPayload{ID: who.UserID})
	}
	return p.publish(room)
}

func (p *Presence) publish(room uuid.UUID) []domain.PresenceUser {
	_, payload, err := p.registry.BroadcastWith(room, EventOnlineUsers, func(members []*Session) any {
		users := onlineUsers(members)
		if p.observe != nil {
			p.observe(Event{Room: room, Name: EventOnlineUsers, Recipients: len(members), Online: len(users)})
		}
		return users
	})
	if err != nil {
		p.log.Error("Failed to publish online users", "error", err, "project_id", room)
		return nil
	}
	users, _ := payload.([]domain.PresenceUser)
	return users
}

func (p *Presence) broadcast(room uuid.UUID, event string, payload any) {
	if _, err := p.registry.Broadcast(room, event, payload); err != nil {
		p.log.Error("Failed to broadcast presence event", "error", err, "event", event, "project_id", room)
	}
}

func onlineUsers(members []*Session) []domain.PresenceUser {
	seen := make(map[uuid.UUID]struct{}, len(members))
	users := make([]domain.PresenceUser, 0, len(members))
	for _, s := range members {
		id := s.Identity()
		if _, dup := seen[id.UserID]; dup {
			continue
		}
		seen[id.UserID] = struct{}{}
		users = append(users, domain.PresenceUser{ID: id.UserID, Name: id.Name})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID.String() < users[j].ID.String()
	})
	return users
}
