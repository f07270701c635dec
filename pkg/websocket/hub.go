package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/logger"
)

// Message types pushed to connected clients.
const (
	TypeOfferExtended = "offer.extended"
	TypeOfferExpired  = "offer.expired"
	TypeBookingStatus = "booking.status"
	TypeDriverAssign  = "driver.assigned"
)

// Message is the envelope for everything sent over a socket.
type Message struct {
	Type      string                 `json:"type"`
	BookingID string                 `json:"booking_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// BroadcastMessage targets a message at a single user or everyone.
type BroadcastMessage struct {
	Target   string // "user" or "all"
	TargetID string
	Message  *Message
}

// Hub maintains the set of active clients and routes outbound messages.
type Hub struct {
	clients map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run processes hub events. Call in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case broadcast := <-h.Broadcast:
			h.broadcastMessage(broadcast)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A reconnect replaces the previous connection for the same user.
	if prev, ok := h.clients[client.ID]; ok {
		close(prev.Send)
	}
	h.clients[client.ID] = client
	logger.Debug("websocket client registered",
		zap.String("client_id", client.ID),
		zap.String("role", client.Role))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
		close(client.Send)
		logger.Debug("websocket client unregistered", zap.String("client_id", client.ID))
	}
}

func (h *Hub) broadcastMessage(broadcast *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch broadcast.Target {
	case "user":
		if client, ok := h.clients[broadcast.TargetID]; ok {
			client.SendMessage(broadcast.Message)
		}
	case "all":
		for _, client := range h.clients {
			client.SendMessage(broadcast.Message)
		}
	}
}

// SendToUser queues a message for a specific connected user. Messages for
// users without an open socket are dropped.
func (h *Hub) SendToUser(userID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{Target: "user", TargetID: userID, Message: msg}
}

// SendToAll queues a message for every connected client.
func (h *Hub) SendToAll(msg *Message) {
	h.Broadcast <- &BroadcastMessage{Target: "all", Message: msg}
}

// IsConnected reports whether the user has an open socket.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
