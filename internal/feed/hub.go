// Package feed pushes role and membership changes to connected portal tabs
// over WebSocket.
package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// EventType names a change pushed to subscribers.
type EventType string

const (
	EventRoleAssigned EventType = "role_assigned"
	EventRoleRemoved  EventType = "role_removed"
	EventMemberJoined EventType = "member_joined"
)

// Event is one change for a single user.
type Event struct {
	Type     EventType `json:"type"`
	UserID   string    `json:"user_id"`
	RoleID   string    `json:"role_id,omitempty"`
	RoleName string    `json:"role_name,omitempty"`
	At       time.Time `json:"at"`
}

const subscriberBuffer = 16

type subscriber struct {
	conn   *websocket.Conn
	events chan Event
}

// Hub tracks active subscriptions per user and tab session.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]map[string]*subscriber)}
}

// Register subscribes a connection for userID/sessionID. A connection already
// registered under the same session is closed and replaced.
func (h *Hub) Register(userID, sessionID string, conn *websocket.Conn) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[string]*subscriber)
	}

	if existing, exists := h.active[userID][sessionID]; exists {
		if existing.conn == conn {
			return existing.events
		}
		if existing.conn != nil {
			_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
		}
		close(existing.events)
	}

	sub := &subscriber{conn: conn, events: make(chan Event, subscriberBuffer)}
	h.active[userID][sessionID] = sub
	slog.Info("Feed subscriber registered", "user_id", userID, "session_id", sessionID)
	return sub.events
}

// Unregister removes the subscription if conn still owns it.
func (h *Hub) Unregister(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.active[userID]
	if !ok {
		return
	}
	current, exists := sessions[sessionID]
	if !exists || current.conn != conn {
		return
	}
	close(current.events)
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(h.active, userID)
	}
	slog.Info("Feed subscriber unregistered", "user_id", userID, "session_id", sessionID)
}

// Publish delivers ev to every subscriber of ev.UserID. Slow subscribers
// whose buffer is full miss the event.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sid, sub := range h.active[ev.UserID] {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("Feed subscriber buffer full, dropping event",
				"user_id", ev.UserID, "session_id", sid, "type", ev.Type)
		}
	}
}

// Count returns the number of subscriptions for userID.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[userID])
}

// CloseAll terminates every subscription, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, sessions := range h.active {
		for _, sub := range sessions {
			if sub.conn != nil {
				_ = sub.conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			close(sub.events)
		}
		delete(h.active, userID)
	}
}
