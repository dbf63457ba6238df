// Package realtime carries the WebSocket transport for the live session: the
// hub fanning events out to every connection, the per-connection pumps and
// an optional Redis pub/sub mirror.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Publisher mirrors outbound session events to Redis for observers on other
// processes.
type Publisher interface {
	PublishSessionEvent(origin, event string, payload []byte) error
}

// Subscriber receives session events published by other processes.
type Subscriber interface {
	SubscribeSession(handler func(origin, event string, payload []byte)) (cancel func(), err error)
}

// Hub holds every live connection of the single session and is the only
// writer of outbound events. Broadcasts also publish to Redis when
// configured; events received from Redis are re-broadcast locally unless
// this instance published them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	logger   *zap.Logger
	origin   string
	pub      Publisher
	cancelFn func()
}

// NewHub creates a hub and, when a subscriber is given, starts mirroring
// events published by other instances.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		origin:  uuid.NewString(),
		pub:     pub,
	}
	if sub != nil {
		cancel, err := sub.SubscribeSession(func(origin, event string, payload []byte) {
			if origin == h.origin {
				return
			}
			h.broadcastLocal(event, json.RawMessage(payload))
		})
		if err != nil {
			logger.Warn("session event subscription failed", zap.Error(err))
		} else {
			h.cancelFn = cancel
		}
	}
	return h
}

// Register adds a connection to the session.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("conn_id", c.ID), zap.Int("connections", count))
}

// Unregister removes a connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("conn_id", c.ID), zap.Int("connections", count))
}

// Broadcast sends an event to every local connection and mirrors it to Redis
// when configured.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.broadcastLocal(event, json.RawMessage(data))
	if h.pub != nil {
		_ = h.pub.PublishSessionEvent(h.origin, event, data)
	}
}

// SendTo sends an event to a single connection.
func (h *Hub) SendTo(connID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.enqueue(WSMessage{Event: event, Data: data})
}

// Disconnect severs a connection after its queued messages flush, so a final
// notice (e.g. the kicked notice) still reaches the client.
func (h *Hub) Disconnect(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.close()
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown stops the Redis subscription.
func (h *Hub) Shutdown() {
	if h.cancelFn != nil {
		h.cancelFn()
	}
}

func (h *Hub) broadcastLocal(event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(msg)
	}
}
