package websocket

import (
	"sync"

	"onbrand-chat-be/internal/chat"
	"onbrand-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// SessionFactory builds a chat session for one connection. Each session gets
// its own reconciler and mode detector, so subscriptions die with it.
type SessionFactory func(userId uuid.UUID, userName, userEmail string, sink chat.Sink) *chat.Session

// Hub tracks connected clients. Cross-instance delivery rides the row feed
// and the broadcast channel, so the hub only needs local bookkeeping:
// multi-device registration and clean shutdown.
type Hub struct {
	// Registered clients map: UserID -> List of Clients (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	factory SessionFactory
	logger  logger.ILogger
}

func NewHub(factory SessionFactory, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		factory:    factory,
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// ConnectedClients returns the number of open connections, over all devices.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}
