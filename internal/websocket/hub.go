package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ClientObserver is told the live connection count. Implemented by metrics.
type ClientObserver interface {
	SocketClients(n int)
}

// PresenceSink is told when a user's last connection closes.
type PresenceSink interface {
	SetOffline(ctx context.Context, userID uuid.UUID) error
}

// Hub tracks live connections per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	perUser map[uuid.UUID]int

	observer ClientObserver
	presence PresenceSink
}

func NewHub(observer ClientObserver, presence PresenceSink) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		perUser:  make(map[uuid.UUID]int),
		observer: observer,
		presence: presence,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.perUser[client.UserID]++
	n := len(h.clients)
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.SocketClients(n)
	}
}

// Unregister removes client and marks its user offline when it was the
// user's last connection.
func (h *Hub) Unregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	h.perUser[client.UserID]--
	last := h.perUser[client.UserID] <= 0
	if last {
		delete(h.perUser, client.UserID)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.SocketClients(n)
	}
	if last && h.presence != nil {
		if err := h.presence.SetOffline(ctx, client.UserID); err != nil {
			client.log.Warnf("set offline for %s: %v", client.UserID, err)
		}
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) IsConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.perUser[userID] > 0
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
