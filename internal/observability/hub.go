package observability

import (
	"sync"

	"github.com/gorilla/websocket"

	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
)

// Events waiting for fan-out. A full backlog drops broadcasts instead
// of blocking the emitting request.
const broadcastBacklog = 256

// Hub fans emitted events out to live websocket subscribers. Delivery
// is best effort: a subscriber that cannot be written to is pruned.
// A single dispatcher goroutine drains the backlog, so each subscriber
// receives events in emission order.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*websocket.Conn]struct{}
	events      chan models.EventProjection
}

func NewHub() *Hub {
	h := &Hub{
		subscribers: make(map[*websocket.Conn]struct{}),
		events:      make(chan models.EventProjection, broadcastBacklog),
	}
	go h.dispatch()
	return h
}

// Subscribe registers a connection and returns its unsubscribe func.
// The hub does not own the connection; the caller closes it.
func (h *Hub) Subscribe(conn *websocket.Conn) func() {
	h.mu.Lock()
	h.subscribers[conn] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	logger.Debug("event subscriber attached", "subscribers", count)
	return func() { h.remove(conn) }
}

// Broadcast enqueues one event projection for delivery. It never
// blocks the caller.
func (h *Hub) Broadcast(event models.Event) {
	select {
	case h.events <- event.Projection():
	default:
		logger.Warn("event feed backlog full, dropping broadcast")
	}
}

// dispatch is the only goroutine that writes to subscriber sockets.
func (h *Hub) dispatch() {
	for projection := range h.events {
		h.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(h.subscribers))
		for conn := range h.subscribers {
			conns = append(conns, conn)
		}
		h.mu.Unlock()

		for _, conn := range conns {
			if err := conn.WriteJSON(projection); err != nil {
				h.remove(conn)
			}
		}
	}
}

// SubscriberCount reports current live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, conn)
}
