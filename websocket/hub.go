package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Notification types pushed to open dashboards
const (
	NotificationTypeConnected    = "connected"
	NotificationTypeRolloverSync = "rollover_synced"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Month   string      `json:"month,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Client represents a connected dashboard WebSocket client
type Client struct {
	Conn *websocket.Conn
}

// Hub maintains the set of active dashboard clients and broadcasts
// rollover sync events so open dashboards can refresh
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a notification to every connected client
func (h *Hub) Broadcast(notification Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Conn.WriteJSON(notification)
	}
}

// NotifyRolloverSynced tells open dashboards that a month's records changed
// and a reload will show newly merged rollover items
func (h *Hub) NotifyRolloverSynced(month string, itemsMerged int) {
	h.Broadcast(Notification{
		Type:    NotificationTypeRolloverSync,
		Message: "Rollover data has been synced",
		Month:   month,
		Data:    map[string]interface{}{"itemsMerged": itemsMerged},
	})
}
