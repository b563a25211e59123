package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vladislav-moscow/Social/pkg/logger"
)

const writeWait = 10 * time.Second

// Config holds relay client configuration
type Config struct {
	URL                  string
	Origin               string
	ConnectTimeout       time.Duration
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig returns a development configuration
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:8900/socket",
		ConnectTimeout:       15 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ReconnectBaseDelay:   2 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: -1, // unlimited
	}
}

// Listener receives frames on the read goroutine, in arrival order.
type Listener func(Envelope)

// ConnectionState represents the state of the relay connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	MessagesReceived int64
	MessagesSent     int64
	ReconnectCount   int
	LastError        string
	ConnectedAt      time.Time
	DisconnectedAt   time.Time
}

// Client is a relay connection that reconnects with exponential backoff and
// joins again as the same user afterwards.
type Client struct {
	config Config
	state  atomic.Value // ConnectionState

	mu     sync.RWMutex
	conn   *websocket.Conn
	userID string

	writeMu sync.Mutex

	listeners   map[MessageType][]Listener
	listenersMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	statsLock sync.RWMutex
	stats     ConnectionStats
}

// NewClient creates a new relay client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:    config,
		listeners: make(map[MessageType][]Listener),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.state.Store(StateDisconnected)
	return c
}

// Connect dials the relay and starts the read and heartbeat loops.
func (c *Client) Connect() error {
	c.setState(StateConnecting)

	conn, err := c.dial()
	if err != nil {
		c.setState(StateError)
		c.recordError(err.Error())
		return err
	}
	c.attach(conn)

	logger.Debug("Relay connected", "url", c.config.URL)
	return nil
}

// Disconnect closes the connection and stops reconnecting.
func (c *Client) Disconnect() error {
	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.setState(StateDisconnected)
	c.recordDisconnected()
	logger.Debug("Relay disconnected")
	return nil
}

// IsConnected returns true if the connection is established
func (c *Client) IsConnected() bool {
	return c.getState() == StateConnected
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return c.getState()
}

// On subscribes to a message type; MessageTypeAny receives every frame.
func (c *Client) On(msgType MessageType, listener Listener) {
	c.listenersMu.Lock()
	c.listeners[msgType] = append(c.listeners[msgType], listener)
	c.listenersMu.Unlock()
}

// Join registers this connection as userID. The join is repeated after
// every reconnect.
func (c *Client) Join(userID string) error {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
	return c.Send(MessageTypeJoin, JoinPayload{UserID: userID})
}

// UserID returns the joined user, if any.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Relay forwards a message to a connected recipient.
func (c *Client) Relay(p RelaySend) error {
	if p.SenderID == "" {
		p.SenderID = c.UserID()
	}
	return c.Send(MessageTypeRelaySend, p)
}

// Send sends a frame to the relay
func (c *Client) Send(msgType MessageType, payload interface{}) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(outgoing{Type: msgType, Payload: payload, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	c.recordMessageSent()
	return nil
}

// GetStats returns connection statistics
func (c *Client) GetStats() ConnectionStats {
	c.statsLock.RLock()
	defer c.statsLock.RUnlock()
	return c.stats
}

func (c *Client) dial() (*websocket.Conn, error) {
	var header http.Header
	if c.config.Origin != "" {
		header = http.Header{"Origin": []string{c.config.Origin}}
	}

	ctx := c.ctx
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(c.ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, header)
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateConnected)
	c.recordConnected()

	done := make(chan struct{})
	go c.readLoop(conn, done)
	if c.config.HeartbeatInterval > 0 {
		go c.heartbeatLoop(done)
	}
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.recordError(err.Error())
			logger.Warn("Relay read error", "error", err)
			go c.handleDisconnect(conn)
			return
		}

		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Relay frame is not JSON", "error", err)
			continue
		}
		c.recordMessageReceived()
		c.emit(msg)
	}
}

func (c *Client) emit(msg Envelope) {
	c.listenersMu.RLock()
	listeners := append([]Listener(nil), c.listeners[msg.Type]...)
	listeners = append(listeners, c.listeners[MessageTypeAny]...)
	c.listenersMu.RUnlock()

	for _, l := range listeners {
		l(msg)
	}
}

func (c *Client) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.Send(MessageTypePing, PingPayload{ClientTime: time.Now().UnixMilli()}); err != nil {
				logger.Debug("Failed to send heartbeat", "error", err)
			}
		}
	}
}

func (c *Client) handleDisconnect(dead *websocket.Conn) {
	c.mu.Lock()
	if c.conn == dead {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = dead.Close()

	c.setState(StateReconnecting)
	c.recordDisconnected()

	attempts := 0
	delay := c.config.ReconnectBaseDelay
	for {
		if c.config.MaxReconnectAttempts >= 0 && attempts >= c.config.MaxReconnectAttempts {
			c.setState(StateError)
			logger.Error("Max reconnection attempts reached")
			return
		}

		wait := delay
		if delay > 0 {
			wait += time.Duration(rand.Int63n(int64(delay)/2 + 1))
		}
		logger.Debug("Reconnecting relay", "attempt", attempts+1, "wait", wait)

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(wait):
		}

		conn, err := c.dial()
		if err != nil {
			attempts++
			c.recordError(err.Error())
			delay *= 2
			if delay > c.config.ReconnectMaxDelay {
				delay = c.config.ReconnectMaxDelay
			}
			continue
		}

		c.attach(conn)
		c.statsLock.Lock()
		c.stats.ReconnectCount++
		c.statsLock.Unlock()
		logger.Info("Relay reconnected", "attempts", attempts+1)

		if userID := c.UserID(); userID != "" {
			if err := c.Send(MessageTypeJoin, JoinPayload{UserID: userID}); err != nil {
				logger.Warn("Rejoin failed", "user_id", userID, "error", err)
			}
		}
		return
	}
}

func (c *Client) setState(state ConnectionState) {
	c.state.Store(state)
}

func (c *Client) getState() ConnectionState {
	return c.state.Load().(ConnectionState)
}

func (c *Client) recordMessageReceived() {
	c.statsLock.Lock()
	c.stats.MessagesReceived++
	c.statsLock.Unlock()
}

func (c *Client) recordMessageSent() {
	c.statsLock.Lock()
	c.stats.MessagesSent++
	c.statsLock.Unlock()
}

func (c *Client) recordError(errMsg string) {
	c.statsLock.Lock()
	c.stats.LastError = errMsg
	c.statsLock.Unlock()
}

func (c *Client) recordConnected() {
	c.statsLock.Lock()
	c.stats.ConnectedAt = time.Now()
	c.statsLock.Unlock()
}

func (c *Client) recordDisconnected() {
	c.statsLock.Lock()
	c.stats.DisconnectedAt = time.Now()
	c.statsLock.Unlock()
}
