// Package hub fans committed engine events out to WebSocket
// subscribers.  Each reservation has one room; clients register after
// the HTTP handler has checked membership, so the hub itself does no
// authorization.
package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub tracks connected clients by room.  Publish and Present make it
// the engine's broadcast channel; delivery is best-effort, clients
// that fall behind are dropped and recover through message history.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint64]map[*Client]bool
}

func New() *Hub {
	return &Hub{rooms: make(map[uint64]map[*Client]bool)}
}

// envelope is the wire frame for every outbound event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Publish serializes payload and queues it for every client in the
// room.  A client whose send buffer is full is disconnected rather
// than allowed to stall the rest of the room.
func (h *Hub) Publish(roomID uint64, event string, payload any) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		log.Printf("hub: marshal %s event for room %d: %v", event, roomID, err)
		return
	}

	// Sends happen under the read lock and close(c.send) only ever
	// happens in unregister under the write lock, so a broadcast can
	// never hit a channel a concurrent disconnect already closed.
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[roomID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("hub: client user %d room %d too slow, dropping", c.userID, c.roomID)
		h.unregister(c)
	}
}

// Present returns the distinct user IDs with at least one open
// connection to the room.
func (h *Hub) Present(roomID uint64) []uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[uint64]bool)
	users := make([]uint64, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if !seen[c.userID] {
			seen[c.userID] = true
			users = append(users, c.userID)
		}
	}
	return users
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.roomID] == nil {
		h.rooms[c.roomID] = make(map[*Client]bool)
	}
	h.rooms[c.roomID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.roomID)
	}
}
