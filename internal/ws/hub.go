// Package ws fans bus events out to connected browsers. Each user may hold
// several sockets (tabs); a failed write drops just that socket.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medrevise/medrevise/internal/events"
)

const writeWait = 10 * time.Second

type Hub struct {
	mu    sync.Mutex
	users map[string]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{users: make(map[string]map[*websocket.Conn]bool)}
}

func (h *Hub) Add(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*websocket.Conn]bool)
		h.users[userID] = set
	}
	set[conn] = true
}

func (h *Hub) Remove(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(userID, conn)
}

func (h *Hub) removeLocked(userID string, conn *websocket.Conn) {
	set, ok := h.users[userID]
	if !ok {
		return
	}
	if set[conn] {
		delete(set, conn)
		_ = conn.Close()
	}
	if len(set) == 0 {
		delete(h.users, userID)
	}
}

// Count reports how many sockets a user holds.
func (h *Hub) Count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[userID])
}

// Send writes v as JSON to every socket of one user. Sockets that fail are
// closed and forgotten.
func (h *Hub) Send(userID string, v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.users[userID] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			h.removeLocked(userID, conn)
		}
	}
}

// Broadcast writes v to every connected socket.
func (h *Hub) Broadcast(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.users {
		for conn := range set {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				h.removeLocked(userID, conn)
			}
		}
	}
}

// CloseAll tears down every socket, typically on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.users {
		for conn := range set {
			_ = conn.Close()
		}
		delete(h.users, userID)
	}
}

// Run pumps bus events into sockets until the context ends. Events without a
// user are broadcast.
func (h *Hub) Run(ctx context.Context, bus *events.Bus) {
	ch, cancel := bus.Subscribe(64, nil)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.UserID == "" {
				h.Broadcast(e)
			} else {
				h.Send(e.UserID, e)
			}
		}
	}
}
