// Package websocket pushes inventory change events to connected app
// clients so open screens refresh without polling.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a change event broadcast to clients. HouseholdID scopes the
// event; clients subscribed to a specific household only see its events.
type Message struct {
	Type        string         `json:"type"`
	Entity      string         `json:"entity"`
	Action      string         `json:"action"`
	HouseholdID int64          `json:"household_id,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, householdID int64, extra map[string]any) Message {
	return Message{
		Type:        fmt.Sprintf("%s_%s", entity, action),
		Entity:      entity,
		Action:      action,
		HouseholdID: householdID,
		Extra:       extra,
	}
}

// Hub maintains the set of active WebSocket clients and routes messages
// to them by household.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client watching the message's
// household. Clients with no household filter receive everything.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.householdID != 0 && msg.HouseholdID != 0 && c.householdID != msg.HouseholdID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the broadcaster
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
