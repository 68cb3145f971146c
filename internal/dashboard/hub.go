package dashboard

import (
	"sync"
	"time"
)

// subscriberBuffer is how many events a slow client may lag behind before it
// is dropped.
const subscriberBuffer = 10

// Event announces that the top words table was reloaded.
type Event struct {
	Version   uint64    `json:"version"`
	Signal    string    `json:"signal"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Hub fans reload events out to SSE clients.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	latest      Event
	closed      bool
}

// NewHub creates an empty hub at version 0.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a client. The returned func unsubscribes and may be
// called more than once. After Close the channel is returned already closed.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subscribers[ch] = struct{}{}
	}
	h.mu.Unlock()

	return ch, func() { h.remove(ch) }
}

// remove closes ch only if it is still registered; Publish may already
// have dropped it.
func (h *Hub) remove(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Publish bumps the version and sends the event to every client. Clients
// whose buffer is full are dropped.
func (h *Hub) Publish(signal string, at time.Time) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = Event{Version: h.latest.Version + 1, Signal: signal, UpdatedAt: at}
	for ch := range h.subscribers {
		select {
		case ch <- h.latest:
		default:
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return h.latest
}

// Close disconnects every client. Events published afterwards only update Latest.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Latest returns the most recent event.
func (h *Hub) Latest() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
