package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislav-moscow/Social/internal/relay"
)

const testOrigin = "http://localhost:5173"

func startRelay(t *testing.T) (*relay.Hub, string) {
	t.Helper()
	hub := relay.NewHub()
	go hub.Run()

	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(relay.NewRouter(hub, testOrigin))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Origin = testOrigin
	cfg.ConnectTimeout = 2 * time.Second
	cfg.HeartbeatInterval = 0
	cfg.ReconnectBaseDelay = 20 * time.Millisecond
	cfg.ReconnectMaxDelay = 100 * time.Millisecond
	return cfg
}

// recorder collects frames of one type.
type recorder struct {
	mu     sync.Mutex
	frames []Envelope
}

func (r *recorder) listen(e Envelope) {
	r.mu.Lock()
	r.frames = append(r.frames, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.frames...)
}

func connectAs(t *testing.T, url, userID string) *Client {
	t.Helper()
	c := NewClient(testConfig(url))
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Disconnect() })
	if userID != "" {
		require.NoError(t, c.Join(userID))
	}
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "ws://localhost:8900/socket", cfg.URL)
	assert.Equal(t, -1, cfg.MaxReconnectAttempts)
	assert.Equal(t, StateDisconnected, NewClient(cfg).State())
}

func TestSendWithoutConnection(t *testing.T) {
	c := NewClient(DefaultConfig())
	assert.Error(t, c.Join("alice"))
}

func TestJoinAndRegistryUpdate(t *testing.T) {
	hub, url := startRelay(t)

	var updates recorder
	c := NewClient(testConfig(url))
	c.On(MessageTypeRegistryUpdate, updates.listen)
	require.NoError(t, c.Connect())
	defer c.Disconnect()
	require.NoError(t, c.Join("alice"))

	require.Eventually(t, func() bool { return hub.IsUserOnline("alice") }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(updates.all()) > 0 }, 2*time.Second, 10*time.Millisecond)

	var entries []RegistryEntry
	require.NoError(t, updates.all()[0].Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.NotEmpty(t, entries[0].SocketID)
}

func TestRelayDeliversWithMessageID(t *testing.T) {
	hub, url := startRelay(t)

	alice := connectAs(t, url, "alice")

	var delivered recorder
	bob := NewClient(testConfig(url))
	bob.On(MessageTypeRelayDeliver, delivered.listen)
	require.NoError(t, bob.Connect())
	defer bob.Disconnect()
	require.NoError(t, bob.Join("bob"))

	require.Eventually(t, func() bool { return hub.IsUserOnline("bob") && hub.IsUserOnline("alice") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Relay(RelaySend{ReceiverID: "bob", Text: "hi bob", MessageID: "m1", ConversationID: "c1"}))

	require.Eventually(t, func() bool { return len(delivered.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	var p RelayDeliver
	require.NoError(t, delivered.all()[0].Decode(&p))
	assert.Equal(t, RelayDeliver{SenderID: "alice", Text: "hi bob", MessageID: "m1", ConversationID: "c1"}, p)
}

func TestRelayErrorFrame(t *testing.T) {
	_, url := startRelay(t)

	var errs recorder
	c := NewClient(testConfig(url))
	c.On(MessageTypeError, errs.listen)
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	require.NoError(t, c.Send(MessageTypeJoin, ""))
	require.Eventually(t, func() bool { return len(errs.all()) == 1 }, 2*time.Second, 10*time.Millisecond)

	var p ErrorPayload
	require.NoError(t, errs.all()[0].Decode(&p))
	assert.NotEmpty(t, p.Code)
}

func TestReconnectRejoins(t *testing.T) {
	hub, url := startRelay(t)

	c := connectAs(t, url, "alice")
	require.Eventually(t, func() bool { return hub.IsUserOnline("alice") }, 2*time.Second, 10*time.Millisecond)
	first := hub.Online()[0].SocketID

	// Drop the TCP connection underneath the client.
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	require.NoError(t, conn.UnderlyingConn().Close())

	require.Eventually(t, func() bool {
		online := hub.Online()
		return c.IsConnected() && len(online) == 1 && online[0].SocketID != first
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1, c.GetStats().ReconnectCount)
	assert.Equal(t, "alice", c.UserID())
}

func TestAnyListenerSeesEveryFrame(t *testing.T) {
	_, url := startRelay(t)

	var all recorder
	c := NewClient(testConfig(url))
	c.On(MessageTypeAny, all.listen)
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	require.NoError(t, c.Send(MessageTypePing, PingPayload{ClientTime: time.Now().UnixMilli()}))

	require.Eventually(t, func() bool {
		for _, f := range all.all() {
			if f.Type == MessageTypePong {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// The relay greets every connection first.
	assert.Equal(t, MessageTypeSystem, all.all()[0].Type)
}
