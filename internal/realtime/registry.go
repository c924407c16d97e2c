package realtime

import (
	"sync"

	"github.com/google/uuid"

	"project_portal/pkg/logger"
)

// Departure records one room a session left during LeaveAll.
type Departure struct {
	Room        uuid.UUID
	LastForUser bool
}

// Eviction records one session removed from a room by Evict.
type Eviction struct {
	Session     *Session
	LastForUser bool
}

// Registry maps project rooms to live sessions. One mutex guards every map, so
// membership changes and broadcast enumeration never interleave.
type Registry struct {
	mu          sync.Mutex
	rooms       map[uuid.UUID]map[*Session]struct{}
	memberships map[*Session]map[uuid.UUID]struct{}
	users       map[uuid.UUID]map[*Session]struct{}

	metrics *Metrics
	log     logger.Logger
}

func NewRegistry(metrics *Metrics, log logger.Logger) *Registry {
	return &Registry{
		rooms:       make(map[uuid.UUID]map[*Session]struct{}),
		memberships: make(map[*Session]map[uuid.UUID]struct{}),
		users:       make(map[uuid.UUID]map[*Session]struct{}),
		metrics:     metrics,
		log:         log,
	}
}

func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memberships[s]; ok {
		return
	}
	r.memberships[s] = make(map[uuid.UUID]struct{})

	sessions, ok := r.users[s.UserID()]
	if !ok {
		sessions = make(map[*Session]struct{})
		r.users[s.UserID()] = sessions
	}
	sessions[s] = struct{}{}
	r.updateGauges()
}

// Unregister removes the session from every room and from the user index in one
// critical section, so no broadcast can observe a half-removed session.
func (r *Registry) Unregister(s *Session) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memberships[s]; !ok {
		return nil
	}
	departures := r.leaveAllLocked(s)
	delete(r.memberships, s)

	if sessions, ok := r.users[s.UserID()]; ok {
		delete(sessions, s)
		if len(sessions) == 0 {
			delete(r.users, s.UserID())
		}
	}
	r.updateGauges()
	return departures
}

// Join is idempotent. firstForUser reports whether no other session of the same
// user was in the room before.
func (r *Registry) Join(room uuid.UUID, s *Session) (joined, firstForUser bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.memberships[s]
	if !ok {
		return false, false
	}
	if _, already := rooms[room]; already {
		return false, false
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[room] = members
	}
	firstForUser = !hasUser(members, s.UserID())
	members[s] = struct{}{}
	rooms[room] = struct{}{}
	r.updateGauges()
	return true, firstForUser
}

// Leave is idempotent and reclaims the room once it is empty.
func (r *Registry) Leave(room uuid.UUID, s *Session) (left, lastForUser bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	left, lastForUser = r.leaveLocked(room, s)
	if left {
		r.updateGauges()
	}
	return left, lastForUser
}

func (r *Registry) LeaveAll(s *Session) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	departures := r.leaveAllLocked(s)
	r.updateGauges()
	return departures
}

func (r *Registry) leaveAllLocked(s *Session) []Departure {
	rooms := r.memberships[s]
	departures := make([]Departure, 0, len(rooms))
	for room := range rooms {
		if left, last := r.leaveLocked(room, s); left {
			departures = append(departures, Departure{Room: room, LastForUser: last})
		}
	}
	return departures
}

func (r *Registry) leaveLocked(room uuid.UUID, s *Session) (bool, bool) {
	members, ok := r.rooms[room]
	if !ok {
		return false, false
	}
	if _, ok := members[s]; !ok {
		return false, false
	}

	delete(members, s)
	if rooms, ok := r.memberships[s]; ok {
		delete(rooms, room)
	}
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return true, !hasUser(members, s.UserID())
}

// Evict removes every session of room that match reports in one critical
// section. A nil match empties the room.
func (r *Registry) Evict(room uuid.UUID, match func(*Session) bool) []Eviction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []*Session
	for s := range r.rooms[room] {
		if match == nil || match(s) {
			targets = append(targets, s)
		}
	}

	evicted := make([]Eviction, 0, len(targets))
	for _, s := range targets {
		if left, last := r.leaveLocked(room, s); left {
			evicted = append(evicted, Eviction{Session: s, LastForUser: last})
		}
	}
	if len(evicted) > 0 {
		r.updateGauges()
	}
	return evicted
}

// Broadcast enqueues one frame to every current member of room and returns the
// number of sessions it reached.
func (r *Registry) Broadcast(room uuid.UUID, event string, payload any) (int, error) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deliverLocked(event, frame, r.rooms[room]), nil
}

// BroadcastWith builds the payload from the member set observed under the lock.
func (r *Registry) BroadcastWith(room uuid.UUID, event string, build func(members []*Session) any) (int, any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	payload := build(sessionList(members))
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return 0, nil, err
	}
	return r.deliverLocked(event, frame, members), payload, nil
}

// SendToUsers reaches every connected session of the given users, whatever rooms they are in.
func (r *Registry) SendToUsers(userIDs []uuid.UUID, event string, payload any) (int, error) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		delivered += r.deliverLocked(event, frame, r.users[userID])
	}
	return delivered, nil
}

// Send enqueues a frame to a single session.
func (r *Registry) Send(s *Session, event string, payload any) bool {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		r.log.Error("Failed to encode frame", "error", err, "event", event)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deliverLocked(event, frame, map[*Session]struct{}{s: {}}) == 1
}

func (r *Registry) deliverLocked(event string, frame []byte, members map[*Session]struct{}) int {
	delivered := 0
	for s := range members {
		switch s.enqueue(frame) {
		case enqueued:
			delivered++
		case enqueueFull:
			// Slow consumer: drop the frame and cut the session loose.
			r.metrics.FramesDropped.Inc()
			r.log.Warn("Session send buffer full, closing",
				"connection_id", s.ID(), "user_id", s.UserID(), "event", event)
			s.Close()
		case enqueueClosed:
		}
	}
	if delivered > 0 {
		r.metrics.FramesSent.WithLabelValues(event).Add(float64(delivered))
	}
	return delivered
}

func (r *Registry) MembersOf(room uuid.UUID) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sessionList(r.rooms[room])
}

func (r *Registry) IsMember(room uuid.UUID, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[room][s]
	return ok
}

// RoomsOf returns the rooms a session is currently in.
func (r *Registry) RoomsOf(s *Session) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]uuid.UUID, 0, len(r.memberships[s]))
	for room := range r.memberships[s] {
		rooms = append(rooms, room)
	}
	return rooms
}

// All returns every registered session.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*Session, 0, len(r.memberships))
	for s := range r.memberships {
		all = append(all, s)
	}
	return all
}

func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memberships)
}

func (r *Registry) updateGauges() {
	r.metrics.Sessions.Set(float64(len(r.memberships)))
	r.metrics.Rooms.Set(float64(len(r.rooms)))
}

func hasUser(members map[*Session]struct{}, userID uuid.UUID) bool {
	for s := range members {
		if s.UserID() == userID {
			return true
		}
	}
	return false
}

func sessionList(members map[*Session]struct{}) []*Session {
	list := make([]*Session, 0, len(members))
	for s := range members {
		list = append(list, s)
	}
	return list
}
