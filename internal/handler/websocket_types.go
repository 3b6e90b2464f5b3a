// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"uart-assist/internal/observe"
)

// Message types sent to and accepted from monitor clients
const (
	MessageSnapshot    = "snapshot"
	MessageEvent       = "event"
	MessagePing        = "ping"
	MessagePong        = "pong"
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessageError       = "error"
)

// Client represents a WebSocket client
type Client struct {
	ID          string               `json:"id"`
	Connection  *websocket.Conn      `json:"-"`
	Events      <-chan observe.Event `json:"-"`
	Send        chan []byte          `json:"-"`
	UserAgent   string               `json:"user_agent"`
	RemoteAddr  string               `json:"remote_addr"`
	ConnectedAt time.Time            `json:"connected_at"`

	mu            sync.RWMutex
	subscriptions map[observe.EventKind]bool
}

// Subscribe limits delivery to the given kinds; no subscriptions means all
func (c *Client) Subscribe(kinds ...observe.EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscriptions == nil {
		c.subscriptions = make(map[observe.EventKind]bool)
	}
	for _, kind := range kinds {
		c.subscriptions[kind] = true
	}
}

// Unsubscribe removes kinds from the subscription set
func (c *Client) Unsubscribe(kinds ...observe.EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, kind := range kinds {
		delete(c.subscriptions, kind)
	}
}

// Wants reports whether an event of kind should be delivered
func (c *Client) Wants(kind observe.EventKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[kind]
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// SubscriptionRequest is the payload of subscribe and unsubscribe messages
type SubscriptionRequest struct {
	Kinds []observe.EventKind `json:"kinds"`
}

// ConnectionManager tracks connected WebSocket clients
type ConnectionManager struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.clients[client.ID] = client
}

// Unregister removes a client; it reports whether the client was known
func (cm *ConnectionManager) Unregister(client *Client) bool {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if _, ok := cm.clients[client.ID]; !ok {
		return false
	}
	delete(cm.clients, client.ID)
	return true
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		Clients:          make([]*Client, 0, len(cm.clients)),
	}
	for _, client := range cm.clients {
		stats.Clients = append(stats.Clients, client)
	}
	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int       `json:"total_connections"`
	Clients          []*Client `json:"clients"`
}
