package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrClientClosed is returned when attempting to send to a closed client
	ErrClientClosed = errors.New("client is closed")
	// ErrSendBufferFull is returned when a client is not draining its queue
	ErrSendBufferFull = errors.New("client send buffer is full")
)

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	UserID() int32
	Send(data []byte) error
	Close() error
}

// Hub manages WebSocket connections grouped by owning user.
// It is safe for concurrent use.
type Hub struct {
	// users maps user ID to a map of client ID to client
	users map[int32]map[string]ClientInterface
	mu    sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		users: make(map[int32]map[string]ClientInterface),
	}
}

// Register adds a client to the hub under its user
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.UserID()
	clientID := client.ID()

	if h.users[userID] == nil {
		h.users[userID] = make(map[string]ClientInterface)
	}

	h.users[userID][clientID] = client

	log.Debug().
		Int32("user_id", userID).
		Str("client_id", clientID).
		Msg("WebSocket client registered")
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.UserID()
	clientID := client.ID()

	clients, ok := h.users[userID]
	if !ok {
		return
	}
	if _, exists := clients[clientID]; !exists {
		return
	}

	delete(clients, clientID)
	if len(clients) == 0 {
		delete(h.users, userID)
	}

	log.Debug().
		Int32("user_id", userID).
		Str("client_id", clientID).
		Msg("WebSocket client unregistered")
}

// Broadcast sends an event to every client of one user
func (h *Hub) Broadcast(userID int32, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Int32("user_id", userID).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	clients, ok := h.users[userID]
	if !ok || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy so the lock isn't held during send
	targets := make([]ClientInterface, 0, len(clients))
	for _, client := range clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		go func(c ClientInterface) {
			if err := c.Send(data); err != nil {
				log.Warn().
					Err(err).
					Int32("user_id", userID).
					Str("client_id", c.ID()).
					Msg("Failed to send to client")
			}
		}(client)
	}

	log.Debug().
		Int32("user_id", userID).
		Str("event_type", event.Type).
		Int("client_count", len(targets)).
		Msg("Broadcast event")
}

// ClientCount returns the number of clients connected for a user
func (h *Hub) ClientCount(userID int32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.users[userID])
}

// TotalClientCount returns the total number of connected clients
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.users {
		total += len(clients)
	}
	return total
}

// CloseAll disconnects every client and empties the hub. It returns the
// number of clients closed.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	users := h.users
	h.users = make(map[int32]map[string]ClientInterface)
	h.mu.Unlock()

	closed := 0
	for _, clients := range users {
		for _, client := range clients {
			if err := client.Close(); err != nil {
				log.Debug().Err(err).Str("client_id", client.ID()).Msg("WebSocket client close failed")
			}
			closed++
		}
	}
	return closed
}
