package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of connected chat clients and their per-stream room
// membership. One client may sit in several rooms at once.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and every room it joined, then
// closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		for streamID, members := range h.rooms {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, streamID)
			}
		}
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Join adds a client to a stream's room.
func (h *Hub) Join(c *Client, streamID int64) {
	h.mu.Lock()
	if _, ok := h.rooms[streamID]; !ok {
		h.rooms[streamID] = make(map[*Client]struct{})
	}
	h.rooms[streamID][c] = struct{}{}
	h.mu.Unlock()
}

// Leave removes a client from a stream's room. Leaving a room the client is
// not in is a no-op.
func (h *Hub) Leave(c *Client, streamID int64) {
	h.mu.Lock()
	if members, ok := h.rooms[streamID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, streamID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a frame to every client in a stream's room.
func (h *Hub) Broadcast(streamID int64, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("marshal broadcast frame", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[streamID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop instead of blocking the hub
		}
	}
}

// RoomCount returns the number of clients in a stream's room.
func (h *Hub) RoomCount(streamID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[streamID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
