// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"myo-recorder/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	mutex         sync.RWMutex
	subscriptions map[model.EventType]bool
}

// Subscribe limits the client to the given event types
func (c *Client) Subscribe(eventType model.EventType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.subscriptions == nil {
		c.subscriptions = make(map[model.EventType]bool)
	}
	c.subscriptions[eventType] = true
}

// Unsubscribe removes an event type subscription
func (c *Client) Unsubscribe(eventType model.EventType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.subscriptions, eventType)
}

// Wants reports whether the client receives eventType. A client without
// subscriptions receives everything.
func (c *Client) Wants(eventType model.EventType) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType] || c.subscriptions[model.EventAll]
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientRegistry tracks connected WebSocket clients
type ClientRegistry struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (cr *ClientRegistry) Register(client *Client) {
	cr.mutex.Lock()
	defer cr.mutex.Unlock()
	cr.clients[client.ID] = client
}

// Unregister removes a client and closes its send channel
func (cr *ClientRegistry) Unregister(client *Client) {
	cr.mutex.Lock()
	defer cr.mutex.Unlock()

	if _, ok := cr.clients[client.ID]; ok {
		delete(cr.clients, client.ID)
		close(client.Send)
	}
}

// Clients returns the connected clients
func (cr *ClientRegistry) Clients() []*Client {
	cr.mutex.RLock()
	defer cr.mutex.RUnlock()

	clients := make([]*Client, 0, len(cr.clients))
	for _, client := range cr.clients {
		clients = append(clients, client)
	}
	return clients
}

// Broadcast queues message for every client that wants eventType
func (cr *ClientRegistry) Broadcast(eventType model.EventType, message []byte) (sent, dropped int) {
	cr.mutex.RLock()
	defer cr.mutex.RUnlock()

	for _, client := range cr.clients {
		if !client.Wants(eventType) {
			continue
		}
		select {
		case client.Send <- message:
			sent++
		default:
			dropped++
		}
	}
	return sent, dropped
}

// GetStats returns connection statistics
func (cr *ClientRegistry) GetStats() *ConnectionStats {
	clients := cr.Clients()
	return &ConnectionStats{
		TotalConnections: len(clients),
		Clients:          clients,
	}
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int       `json:"total_connections"`
	Clients          []*Client `json:"clients"`
}
