package notify

import (
	"log"
	"sync"
)

// Event is what subscribers receive; Name is the event contract name
// ("friendRequest", "friendRequestAccepted") and Payload its body.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// Notifier delivers an event to a user if they are currently connected.
// Delivery is best-effort; implementations never report failure.
type Notifier interface {
	Notify(userID uint, event string, payload any)
}

// Hub tracks connected users and routes events to their channels. It is
// the injected replacement for a process-global connected-users map.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint][]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint][]chan Event)}
}

// Subscribe registers a connection for userID and returns its event
// channel plus a cancel func. A user may hold several connections.
func (h *Hub) Subscribe(userID uint) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subs[userID] = append(h.subs[userID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		chans := h.subs[userID]
		for i := range chans {
			if chans[i] == ch {
				h.subs[userID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
	}
	return ch, cancel
}

// Notify sends the event to every connection userID holds. A missing or
// slow subscriber drops the event; the caller never blocks.
func (h *Hub) Notify(userID uint, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[userID] {
		select {
		case ch <- Event{Name: event, Payload: payload}:
		default:
			log.Printf("[hub] dropping %s event for user %d: subscriber not keeping up", event, userID)
		}
	}
}

// ConnectedCount reports how many users currently hold a connection.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
