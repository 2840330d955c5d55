// Package events fans attribute-change events out to websocket subscribers.
package events

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/strefethen/volumio-hub-go/internal/state"
)

type subscriber struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Hub tracks connected websocket subscribers and broadcasts every attribute
// change to each of them. Dead connections are dropped on write failure
// without affecting the rest.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
	logger      *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		logger:      logger,
	}
}

// Add registers a connection and returns its subscriber ID. A reader
// goroutine drains the connection so close frames are noticed.
func (h *Hub) Add(conn *websocket.Conn) string {
	id := uuid.NewString()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return id
	}
	h.subscribers[id] = &subscriber{conn: conn}
	count := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Printf("EVENTS: subscriber %s connected (%d total)", id, count)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.Remove(id)
				return
			}
		}
	}()

	return id
}

// Remove drops a subscriber and closes its connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		sub.conn.Close()
		h.logger.Printf("EVENTS: subscriber %s disconnected", id)
	}
}

// Broadcast sends one attribute change to every subscriber.
func (h *Hub) Broadcast(change state.Change) {
	h.mu.RLock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.RUnlock()

	for id, sub := range subs {
		sub.writeMu.Lock()
		err := sub.conn.WriteJSON(change)
		sub.writeMu.Unlock()
		if err != nil {
			h.logger.Printf("EVENTS: dropping subscriber %s: %v", id, err)
			h.Remove(id)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subscribers
	h.subscribers = make(map[string]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.conn.Close()
	}
}
