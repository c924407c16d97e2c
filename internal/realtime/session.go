package realtime

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"project_portal/internal/domain"
)

// Session is one live connection bound to an authenticated user.
// Room membership is owned by the Registry, never by the session itself.
type Session struct {
	id       string
	identity domain.Identity

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	limiter *rate.Limiter
}

func newSession(identity domain.Identity, buffer int, limiter *rate.Limiter) *Session {
	return &Session{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, buffer),
		closed:   make(chan struct{}),
		limiter:  limiter,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Identity() domain.Identity {
	return s.identity
}

func (s *Session) UserID() uuid.UUID {
	return s.identity.UserID
}

// Outbound yields encoded frames in enqueue order. It is never closed; watch Done instead.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Close marks the session finished. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type enqueueResult int

const (
	enqueued enqueueResult = iota
	enqueueFull
	enqueueClosed
)

// enqueue never blocks.
func (s *Session) enqueue(frame []byte) enqueueResult {
	if s.isClosed() {
		return enqueueClosed
	}
	select {
	case s.send <- frame:
		return enqueued
	default:
		return enqueueFull
	}
}

func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}
