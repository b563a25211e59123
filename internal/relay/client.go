package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	sendBufferSize = 256
)

var validate = validator.New()

// Client is one relay connection. SocketID is the connection handle stored in
// the presence registry.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	SocketID    string
	ConnectedAt time.Time
	RemoteAddr  string
	UserAgent   string

	send        chan []byte
	rateLimiter *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	userID string
	closed bool
}

// RateLimiter is a token bucket.
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter allows maxPerSecond events with bursts up to burst.
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens += now.Sub(r.lastTime).Seconds() * r.refill
	r.lastTime = now
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// NewClient wraps conn. conn may be nil for in-process clients.
func NewClient(hub *Hub, conn *websocket.Conn, socketID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := hub.GetRateLimitConfig()

	return &Client{
		hub:         hub,
		conn:        conn,
		SocketID:    socketID,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, sendBufferSize),
		rateLimiter: NewRateLimiter(cfg.MaxMessagesPerSecond, cfg.BurstSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// UserID returns the user this connection joined as, if any.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) setUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// ReadPump reads frames until the connection ends, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		readCtx, readCancel := context.WithTimeout(c.ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Log.Info("Relay client disconnected", logger.WithSocketID(c.SocketID))
			} else if c.ctx.Err() == nil {
				logger.Log.Warn("Relay read error",
					logger.WithSocketID(c.SocketID),
					logger.WithUserID(c.UserID()),
					zap.Error(err))
				c.hub.metrics.Errors.Add(1)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.SendError("rate_limited", "Too many messages, please slow down")
			c.hub.metrics.Errors.Add(1)
			continue
		}

		c.hub.metrics.MessagesReceived.Add(1)

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			logger.Log.Warn("Relay JSON parse error", logger.WithSocketID(c.SocketID), zap.Error(err))
			c.SendError("invalid_json", "Failed to parse message")
			continue
		}

		c.handleMessage(&message)
	}
}

// WritePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case data := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					logger.Log.Warn("Relay write error", logger.WithSocketID(c.SocketID), zap.Error(err))
					c.hub.metrics.Errors.Add(1)
				}
				return
			}
			c.hub.metrics.MessagesSent.Add(1)

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				logger.Log.Debug("Relay ping failed", logger.WithSocketID(c.SocketID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) handleMessage(message *Message) {
	switch message.Type {
	case MessageTypePing, "heartbeat":
		c.handlePing(message)

	case MessageTypeJoin:
		userID, err := message.JoinUserID()
		if err != nil {
			c.SendError("invalid_payload", err.Error())
			return
		}
		c.hub.Join(c, userID)

	case MessageTypeRelaySend:
		var p RelaySendPayload
		if err := message.ParsePayload(&p); err != nil {
			c.SendError("invalid_payload", "relay-send payload must be an object")
			return
		}
		if err := validate.Struct(p); err != nil {
			c.SendError("invalid_payload", err.Error())
			return
		}
		c.hub.Relay(c, p)

	default:
		logger.Log.Debug("Unknown relay message type",
			logger.WithSocketID(c.SocketID),
			zap.String("type", message.Type))
		c.SendError("unknown_type", fmt.Sprintf("Unknown message type: %s", message.Type))
	}
}

func (c *Client) handlePing(message *Message) {
	var ping PingPayload
	if err := message.ParsePayload(&ping); err != nil {
		ping.ClientTime = 0
	}

	serverTime := time.Now().UnixMilli()
	_ = c.Send(NewReply(message, MessageTypePong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: serverTime,
		Latency:    serverTime - ping.ClientTime,
	}))
}

// Send queues message without blocking. A full buffer is an error.
func (c *Client) Send(message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("client connection closed")
	}

	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// SendError sends an error event to this client only.
func (c *Client) SendError(code, message string) {
	_ = c.Send(NewErrorMessage(code, message))
}

// Close closes the connection once.
func (c *Client) Close() {
	c.closeWith(websocket.StatusNormalClosure, "closing")
}

func (c *Client) closeWith(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	if c.conn != nil {
		_ = c.conn.Close(code, reason)
	}
}

// IsClosed reports whether Close has run.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
