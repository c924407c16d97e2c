package realtime

import "github.com/google/uuid"

// Event describes one completed fan-out.
type Event struct {
	Room       uuid.UUID
	Name       string
	Recipients int
	// Online is the size of the presence list for onlineUsers events.
	Online int
}

// Observer receives every fan-out. onlineUsers events are observed while the
// registry lock is held, so implementations must not block or call back into the Hub.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) {
	f(e)
}
