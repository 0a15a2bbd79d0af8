package photo

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// EventType identifies a booth lifecycle event.
type EventType string

// Lifecycle events pushed to WebSocket subscribers.
const (
	EventStaged    EventType = "photo.staged"
	EventDeveloped EventType = "photo.developed"
	EventPlaced    EventType = "photo.placed"
	EventUpdated   EventType = "photo.updated"
	EventCaptioned EventType = "photo.captioned"
	EventDeleted   EventType = "photo.deleted"
)

// Event is a booth state change. Photo is nil for deletions.
type Event struct {
	Type  EventType `json:"type"`
	ID    string    `json:"id"`
	Photo *Photo    `json:"photo,omitempty"`
}

// Broadcaster manages WebSocket connections and fans out booth events.
// Broadcasts come from HTTP handlers, develop timers, and caption goroutines
// concurrently; gorilla/websocket allows at most one writer per connection,
// so each connection carries its own write mutex.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*sync.Mutex
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		connections: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Subscribe registers a WebSocket connection for booth events.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = &sync.Mutex{}
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// Broadcast sends a booth event to all subscribers. Connections that fail
// the write are dropped from the subscriber set.
func (b *Broadcaster) Broadcast(event *Event) {
	b.mu.RLock()
	if len(b.connections) == 0 {
		b.mu.RUnlock()
		return
	}
	type subscriber struct {
		conn *websocket.Conn
		wmu  *sync.Mutex
	}
	subscribers := make([]subscriber, 0, len(b.connections))
	for conn, wmu := range b.connections {
		subscribers = append(subscribers, subscriber{conn: conn, wmu: wmu})
	}
	b.mu.RUnlock()

	// Serialize once for all subscribers
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal booth event", "error", err, "type", event.Type)
		return
	}

	var dead []*websocket.Conn
	for _, sub := range subscribers {
		sub.wmu.Lock()
		err := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.wmu.Unlock()
		if err != nil {
			slog.Warn("failed to send event to websocket client",
				"error", err,
				"type", event.Type,
			)
			dead = append(dead, sub.conn)
		}
	}

	if len(dead) > 0 {
		b.mu.Lock()
		for _, conn := range dead {
			delete(b.connections, conn)
		}
		b.mu.Unlock()
	}
}

// ConnectionCount returns the number of active WebSocket connections.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}
