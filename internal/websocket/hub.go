package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"banter/internal/chat"
)

// Hub tracks live connections by id and delivers outbound events to them. It
// implements chat.Sender and chat.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *log.Logger
}

// NewHub creates an empty connection hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connectionID)
}

// SendEvent delivers one event to one connection. Unknown connections are a
// no-op: the socket raced away between snapshot and send.
func (h *Hub) SendEvent(connectionID string, event chat.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := client.enqueue(payload); err != nil {
		h.logger.Printf("drop %s event to %s: %v", event.Type, connectionID, err)
	}
	return nil
}

// Broadcast delivers one event to every connection.
func (h *Hub) Broadcast(event chat.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.enqueue(payload); err != nil {
			h.logger.Printf("drop %s broadcast to %s: %v", event.Type, client.ID, err)
		}
	}
	return nil
}
