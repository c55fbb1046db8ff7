package websocket

import (
	"encoding/json"
	"sync"
)

const (
	EventBalance = "balance"
	EventGroup   = "group"
)

type BalanceUpdate struct {
	AccountID        string `json:"account_id"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"available_balance"`
	Currency         string `json:"currency"`
	Reference        string `json:"reference"`
}

// GroupUpdate is pushed to a user whose membership changed.
type GroupUpdate struct {
	GroupID     string `json:"group_id"`
	Action      string `json:"action"`
	Status      string `json:"status"`
	MemberCount int    `json:"member_count"`
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans events out to every open connection of a user. Slow clients drop
// messages rather than block the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	origins []string
	closed  bool
}

// NewHub accepts upgrades from the given origins ("*" for any). With none,
// only same-origin upgrades are accepted.
func NewHub(allowedOrigins ...string) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		origins: allowedOrigins,
	}
}

// Register adds client under its user. It returns false once the hub is closed.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	return true
}

// Unregister removes client and closes its send channel. Repeated calls are no-ops.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[client.userID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// Close ends every open stream and rejects later registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, set := range h.clients {
		for client := range set {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	h.publish(userID, EventBalance, update)
}

func (h *Hub) BroadcastGroup(userID string, update GroupUpdate) {
	h.publish(userID, EventGroup, update)
}

func (h *Hub) publish(userID, eventType string, data any) {
	payload, err := json.Marshal(envelope{Type: eventType, Data: data})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
