package realtime

import (
	"sync"

	"github.com/google/uuid"

	"project_portal/internal/domain"
	"project_portal/pkg/logger"
)

// Hub owns the room registry and is the single handle other components use to
// push events to connected clients.
type Hub struct {
	registry *Registry
	presence *Presence
	seq      *sequencer
	metrics  *Metrics
	log      logger.Logger

	obsMu     sync.RWMutex
	observers []Observer
}

func NewHub(metrics *Metrics, log logger.Logger) *Hub {
	registry := NewRegistry(metrics, log)
	h := &Hub{
		registry: registry,
		presence: NewPresence(registry, log),
		seq:      newSequencer(),
		metrics:  metrics,
		log:      log,
	}
	h.presence.observe = h.notify
	return h
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) AddObserver(o Observer) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	h.observers = append(h.observers, o)
}

func (h *Hub) Online(room uuid.UUID) []domain.PresenceUser {
	return h.presence.Online(room)
}

// BroadcastRoom fans payload out to the project's room.
func (h *Hub) BroadcastRoom(room uuid.UUID, event string, payload any) int {
	delivered, err := h.registry.Broadcast(room, event, payload)
	if err != nil {
		h.log.Error("Failed to broadcast", "error", err, "event", event, "project_id", room)
		return 0
	}
	h.notify(Event{Room: room, Name: event, Recipients: delivered})
	return delivered
}

// SendToUsers delivers payload to every connected session of userIDs.
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event string, payload any) int {
	delivered, err := h.registry.SendToUsers(userIDs, event, payload)
	if err != nil {
		h.log.Error("Failed to send to users", "error", err, "event", event)
		return 0
	}
	h.notify(Event{Name: event, Recipients: delivered})
	return delivered
}

// RevokeAccess removes the sessions of userIDs from the project's room. It runs
// under the room's ordering lock, so no message from an evicted session is
// appended once it returns. Admin sessions keep their place.
func (h *Hub) RevokeAccess(room uuid.UUID, userIDs []uuid.UUID) int {
	if len(userIDs) == 0 {
		return 0
	}
	revoked := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		revoked[id] = struct{}{}
	}

	var evicted []Eviction
	h.seq.Do(room, func() {
		evicted = h.registry.Evict(room, func(s *Session) bool {
			_, ok := revoked[s.UserID()]
			return ok && !s.Identity().IsAdmin()
		})
	})

	for _, e := range evicted {
		h.registry.Send(e.Session, EventAccessRevoked, projectRefPayload{ProjectID: room})
		h.left(room, e.Session.Identity(), e.LastForUser)
	}
	if len(evicted) > 0 {
		h.log.Info("Revoked room access", "project_id", room, "sessions", len(evicted))
	}
	return len(evicted)
}

// CloseRoom empties the project's room and tells every evicted session the
// project is gone.
func (h *Hub) CloseRoom(room uuid.UUID) int {
	var evicted []Eviction
	h.seq.Do(room, func() {
		evicted = h.registry.Evict(room, nil)
	})

	for _, e := range evicted {
		h.registry.Send(e.Session, EventProjectDeleted, projectRefPayload{ProjectID: room})
	}
	h.notify(Event{Room: room, Name: EventProjectDeleted, Recipients: len(evicted)})
	return len(evicted)
}

// CloseAll closes every session. Each connection's pumps then disconnect it.
func (h *Hub) CloseAll() {
	sessions := h.registry.All()
	for _, s := range sessions {
		s.Close()
	}
	h.log.Info("Closed all sessions", "sessions", len(sessions))
}

// joined and left publish presence; observers see the onlineUsers event from
// inside the registry lock, so presence events reach them in membership order.
func (h *Hub) joined(room uuid.UUID, who domain.Identity, first bool) {
	h.presence.Joined(room, who, first)
}

func (h *Hub) left(room uuid.UUID, who domain.Identity, last bool) {
	h.presence.Left(room, who, last)
}

// sequence runs fn under the room's ordering lock.
func (h *Hub) sequence(room uuid.UUID, fn func()) {
	h.seq.Do(room, fn)
}

func (h *Hub) notify(e Event) {
	h.obsMu.RLock()
	observers := h.observers
	h.obsMu.RUnlock()

	for _, o := range observers {
		o.Observe(e)
	}
}
