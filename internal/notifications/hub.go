package notifications

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"plantspack/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	// ErrServerFull is returned when the hub is at its global connection cap.
	ErrServerFull = errors.New("server connection limit reached")
	// ErrUserLimit is returned when a user already holds the maximum connections.
	ErrUserLimit = errors.New("user connection limit reached")
)

var wsLog = observability.NewWSLogger("notification hub")

// Hub is a websocket hub that maps userID -> set of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closeOnce  sync.Once
}

// NewHub creates a new Hub instance for managing notifications.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	wsLog.LogConnect(context.Background(), userID)

	return client, nil
}

// UnregisterClient removes client from the hub. Safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	observability.WebSocketConnectionsTotal.Dec()
	client.closeSend()
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
	wsLog.LogDisconnect(context.Background(), client.UserID, "unregistered")
}

// ConnectionCount returns the number of live connections for userID.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// TotalConnections returns the number of live connections across all users.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Broadcast sends message to all connections for userID
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[userID]; ok {
		data := []byte(message)
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// StartWiring connects the Notifier to this hub: it subscribes to the Redis
// patterns and forwards messages to matching userID connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		h.route(channel, payload)
	})
}

func (h *Hub) route(channel, payload string) {
	if channel == broadcastChannel {
		h.BroadcastAll(payload)
		return
	}
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		wsLog.LogLifecycle(context.Background(), "invalid_channel", map[string]interface{}{"channel": channel})
		return
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		wsLog.LogLifecycle(context.Background(), "invalid_channel", map[string]interface{}{"channel": channel})
		return
	}
	h.Broadcast(uint(userID), payload)
}

// Shutdown closes every client's send channel. Each WritePump then sends a
// going-away close frame and closes its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		frame := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
		for _, userConns := range h.conns {
			for client := range userConns {
				client.closeSendWith(frame)
			}
			observability.WebSocketConnectionsTotal.Sub(float64(len(userConns)))
		}
		wsLog.LogLifecycle(context.Background(), "shutdown", map[string]interface{}{"connections": h.totalConns})
		h.conns = make(map[uint]map[*Client]struct{})
		h.totalConns = 0
	})
	return nil
}
