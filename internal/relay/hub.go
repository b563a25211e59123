// Package relay is the presence and relay WebSocket service. Every state change
// runs on the single goroutine in Hub.Run, so join, relay and leave events are
// applied strictly in arrival order.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/broker"
	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/metrics"
	"github.com/vladislav-moscow/Social/internal/presence"
)

const commandBufferSize = 1024

// Hub owns the presence registry and every live connection.
type Hub struct {
	registry *presence.Registry

	// clients by socket id; only touched from Run
	clients map[string]*Client

	commands chan command

	metrics *Metrics
	prom    *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	rateLimitConfig atomic.Value // RateLimitConfig
}

// Metrics tracks hub statistics
type Metrics struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	Delivered          atomic.Int64
	Dropped            atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig defines per-connection rate limiting.
type RateLimitConfig struct {
	MaxMessagesPerSecond int
	BurstSize            int
}

// DefaultRateLimitConfig returns 10 msg/s with a burst of 20.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxMessagesPerSecond: 10, BurstSize: 20}
}

type command interface {
	apply(h *Hub)
}

type registerCmd struct{ client *Client }
type unregisterCmd struct{ client *Client }
type joinCmd struct {
	client *Client
	userID string
}
type relayCmd struct {
	client  *Client
	payload RelaySendPayload
}
type persistedCmd struct{ event broker.MessageCreated }

func (c registerCmd) apply(h *Hub)   { h.registerClient(c.client) }
func (c unregisterCmd) apply(h *Hub) { h.unregisterClient(c.client) }
func (c joinCmd) apply(h *Hub)       { h.join(c.client, c.userID) }
func (c relayCmd) apply(h *Hub)      { h.relay(c.client, c.payload) }
func (c persistedCmd) apply(h *Hub)  { h.deliverPersisted(c.event) }

// NewHub creates a hub with an empty registry.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry: presence.NewRegistry(),
		clients:  make(map[string]*Client),
		commands: make(chan command, commandBufferSize),
		metrics:  &Metrics{},
		prom:     metrics.Get(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	h.rateLimitConfig.Store(DefaultRateLimitConfig())
	return h
}

// Run applies queued commands until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)
	logger.Log.Info("Relay hub starting")

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return
		case cmd := <-h.commands:
			cmd.apply(h)
		}
	}
}

func (h *Hub) submit(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.ctx.Done():
	}
}

// Register adds a connection. It is not in the registry until it joins.
func (h *Hub) Register(c *Client) { h.submit(registerCmd{client: c}) }

// Unregister removes a connection and any registry entry it served.
// Repeated calls for the same client are ignored.
func (h *Hub) Unregister(c *Client) { h.submit(unregisterCmd{client: c}) }

// Join registers userID on c's handle.
func (h *Hub) Join(c *Client, userID string) { h.submit(joinCmd{client: c, userID: userID}) }

// Relay forwards a live message from c to a connected recipient.
func (h *Hub) Relay(c *Client, p RelaySendPayload) { h.submit(relayCmd{client: c, payload: p}) }

// DeliverPersisted pushes a stored message to its recipient if connected.
func (h *Hub) DeliverPersisted(evt broker.MessageCreated) { h.submit(persistedCmd{event: evt}) }

func (h *Hub) registerClient(c *Client) {
	h.clients[c.SocketID] = c
	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	h.prom.RelayConnections.Inc()

	_ = c.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event:    "connected",
		SocketID: c.SocketID,
	}))

	logger.Log.Debug("Relay client connected",
		logger.WithSocketID(c.SocketID),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))
}

func (h *Hub) unregisterClient(c *Client) {
	if _, ok := h.clients[c.SocketID]; !ok {
		return
	}
	delete(h.clients, c.SocketID)
	c.Close()

	h.metrics.ActiveConnections.Add(-1)
	h.prom.RelayConnections.Dec()

	removed := h.registry.Leave(c.SocketID)
	logger.Log.Info("Relay client left",
		logger.WithSocketID(c.SocketID),
		zap.Strings("users", removed),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))

	h.broadcastRegistry()
}

func (h *Hub) join(c *Client, userID string) {
	if _, ok := h.clients[c.SocketID]; !ok {
		return
	}
	previous, err := h.registry.Join(userID, c.SocketID)
	if err != nil {
		c.SendError("invalid_join", "join requires a user id")
		return
	}
	c.setUserID(userID)
	h.prom.RelayJoinsTotal.Inc()

	if previous != "" {
		logger.Log.Info("User rejoined on a new connection",
			logger.WithUserID(userID),
			zap.String("previous_socket_id", previous),
			logger.WithSocketID(c.SocketID))
	} else {
		logger.Log.Debug("User joined", logger.WithUserID(userID), logger.WithSocketID(c.SocketID))
	}

	h.broadcastRegistry()
}

func (h *Hub) relay(from *Client, p RelaySendPayload) {
	sender := p.SenderID
	if sender == "" {
		sender = from.UserID()
	}

	target, ok := h.lookup(p.ReceiverID)
	if !ok {
		h.drop("recipient_offline")
		logger.Log.Warn("Relay recipient not connected",
			zap.String("sender_id", sender),
			zap.String("receiver_id", p.ReceiverID))
		return
	}

	h.deliver(target, NewMessage(MessageTypeRelayDeliver, RelayDeliverPayload{
		SenderID:       sender,
		Text:           p.Text,
		MessageID:      p.MessageID,
		ConversationID: p.ConversationID,
	}))
}

func (h *Hub) deliverPersisted(evt broker.MessageCreated) {
	target, ok := h.lookup(evt.ReceiverID)
	if !ok {
		h.drop("recipient_offline")
		logger.Log.Debug("Persisted message recipient not connected",
			zap.String("receiver_id", evt.ReceiverID),
			zap.String("message_id", evt.Message.ID))
		return
	}
	h.deliver(target, NewMessage(MessageTypeMessageCreated, evt.Message))
}

func (h *Hub) lookup(userID string) (*Client, bool) {
	entry, ok := h.registry.Lookup(userID)
	if !ok {
		return nil, false
	}
	c, ok := h.clients[entry.SocketID]
	return c, ok
}

func (h *Hub) drop(reason string) {
	h.metrics.Dropped.Add(1)
	h.prom.RelayDroppedTotal.WithLabelValues(reason).Inc()
}

func (h *Hub) deliver(c *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.ErrorWithFields("Failed to marshal relay message", err)
		return
	}
	if h.trySend(c, data) {
		h.metrics.Delivered.Add(1)
		h.prom.RelayEventsTotal.WithLabelValues(msg.Type).Inc()
	}
}

func (h *Hub) broadcastRegistry() {
	snapshot := h.registry.Snapshot()
	h.prom.RelayRegisteredUsers.Set(float64(len(snapshot)))

	data, err := json.Marshal(NewMessage(MessageTypeRegistryUpdate, RegistryUpdatePayload(snapshot)))
	if err != nil {
		logger.ErrorWithFields("Failed to marshal registry update", err)
		return
	}
	for _, c := range h.clients {
		h.trySend(c, data)
	}
	h.prom.RelayEventsTotal.WithLabelValues(MessageTypeRegistryUpdate).Inc()
}

// trySend queues data for c. A client whose buffer is full is closed and
// unregistered through the command queue.
func (h *Hub) trySend(c *Client, data []byte) bool {
	if err := c.sendRaw(data); err != nil {
		h.metrics.ConnectionsDropped.Add(1)
		h.drop("buffer_full")
		logger.Log.Warn("Dropping slow relay client", logger.WithSocketID(c.SocketID), zap.Error(err))
		c.Close()
		go h.Unregister(c)
		return false
	}
	return true
}

// Online returns the current registry snapshot.
func (h *Hub) Online() []presence.Entry {
	return h.registry.Snapshot()
}

// IsUserOnline reports whether userID is registered.
func (h *Hub) IsUserOnline(userID string) bool {
	_, ok := h.registry.Lookup(userID)
	return ok
}

// GetMetrics returns current hub counters.
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:   h.metrics.TotalConnections.Load(),
		ActiveConnections:  h.metrics.ActiveConnections.Load(),
		RegisteredUsers:    int64(h.registry.Len()),
		MessagesReceived:   h.metrics.MessagesReceived.Load(),
		MessagesSent:       h.metrics.MessagesSent.Load(),
		Delivered:          h.metrics.Delivered.Load(),
		Dropped:            h.metrics.Dropped.Load(),
		Errors:             h.metrics.Errors.Load(),
		ConnectionsDropped: h.metrics.ConnectionsDropped.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	RegisteredUsers    int64 `json:"registered_users"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Delivered          int64 `json:"delivered"`
	Dropped            int64 `json:"dropped"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d users=%d messages=rx:%d/tx:%d delivered=%d dropped=%d errors=%d",
		m.ActiveConnections, m.TotalConnections, m.RegisteredUsers,
		m.MessagesReceived, m.MessagesSent,
		m.Delivered, m.Dropped, m.Errors,
	)
}

// Shutdown stops Run, notifying and closing every connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	logger.Log.Info("Relay hub shutting down")
	h.cancel()

	select {
	case <-h.done:
		logger.Log.Info("Relay hub shutdown complete", zap.String("metrics", h.GetMetrics().String()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	data, _ := json.Marshal(NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"}))

	for id, c := range h.clients {
		if c.conn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
		}
		c.closeWith(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, id)
	}
	closed := h.metrics.ActiveConnections.Swap(0)
	h.prom.RelayConnections.Sub(float64(closed))
	logger.Log.Info("Closed relay connections", zap.Int64("count", closed))
}

// SetRateLimitConfig applies to connections created afterwards.
func (h *Hub) SetRateLimitConfig(cfg RateLimitConfig) {
	h.rateLimitConfig.Store(cfg)
}

// GetRateLimitConfig returns the current rate limit configuration
func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	return h.rateLimitConfig.Load().(RateLimitConfig)
}
