package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// sequencer serializes work per room. Entries are refcounted and dropped once idle.
type sequencer struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{locks: make(map[uuid.UUID]*roomLock)}
}

func (q *sequencer) Do(room uuid.UUID, fn func()) {
	q.mu.Lock()
	l, ok := q.locks[room]
	if !ok {
		l = &roomLock{}
		q.locks[room] = l
	}
	l.refs++
	q.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()

		q.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(q.locks, room)
		}
		q.mu.Unlock()
	}()

	fn()
}

func (q *sequencer) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.locks)
}
