package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

func startServer(t *testing.T) (*Hub, string) {
	t.Helper()
	h := startHub(t)
	srv := httptest.NewServer(NewRouter(h, testOrigin))
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{testOrigin}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	var welcome Message
	require.NoError(t, wsjson.Read(ctx, conn, &welcome))
	require.Equal(t, MessageTypeSystem, welcome.Type)
	return conn
}

func readType(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string) *Message {
	t.Helper()
	for {
		var msg Message
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if msg.Type == msgType {
			return &msg
		}
	}
}

func TestEndToEndJoinRelayLeave(t *testing.T) {
	h, url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dial(t, ctx, url)
	b := dial(t, ctx, url+"/socket")

	require.NoError(t, wsjson.Write(ctx, a, Message{Type: MessageTypeJoin, Payload: "A"}))
	readType(t, ctx, a, MessageTypeRegistryUpdate)
	readType(t, ctx, b, MessageTypeRegistryUpdate)

	require.NoError(t, wsjson.Write(ctx, b, Message{Type: MessageTypeJoin, Payload: map[string]string{"userId": "B"}}))
	entries := registry(t, readType(t, ctx, a, MessageTypeRegistryUpdate))
	require.Len(t, entries, 2)
	readType(t, ctx, b, MessageTypeRegistryUpdate)

	require.NoError(t, wsjson.Write(ctx, a, Message{
		Type:    MessageTypeRelaySend,
		Payload: RelaySendPayload{SenderID: "A", ReceiverID: "B", Text: "hello"},
	}))
	var p RelayDeliverPayload
	require.NoError(t, readType(t, ctx, b, MessageTypeRelayDeliver).ParsePayload(&p))
	assert.Equal(t, "A", p.SenderID)
	assert.Equal(t, "hello", p.Text)

	require.NoError(t, wsjson.Write(ctx, a, Message{Type: MessageTypePing, ID: "p1", Payload: PingPayload{ClientTime: time.Now().UnixMilli()}}))
	pong := readType(t, ctx, a, MessageTypePong)
	assert.Equal(t, "p1", pong.ReplyTo)

	a.Close(websocket.StatusNormalClosure, "bye")
	entries = registry(t, readType(t, ctx, b, MessageTypeRegistryUpdate))
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].UserID)
	assert.Eventually(t, func() bool { return !h.IsUserOnline("A") }, time.Second, 10*time.Millisecond)
}

func TestInvalidFramesGetErrors(t *testing.T) {
	_, url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dial(t, ctx, url)

	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte("{not json")))
	var p ErrorPayload
	require.NoError(t, readType(t, ctx, a, MessageTypeError).ParsePayload(&p))
	assert.Equal(t, "invalid_json", p.Code)

	require.NoError(t, wsjson.Write(ctx, a, Message{Type: MessageTypeRelaySend, Payload: RelaySendPayload{Text: "x"}}))
	require.NoError(t, readType(t, ctx, a, MessageTypeError).ParsePayload(&p))
	assert.Equal(t, "invalid_payload", p.Code)

	require.NoError(t, wsjson.Write(ctx, a, Message{Type: "dance"}))
	require.NoError(t, readType(t, ctx, a, MessageTypeError).ParsePayload(&p))
	assert.Equal(t, "unknown_type", p.Code)
}

func TestForeignOriginRejected(t *testing.T) {
	_, url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example.com"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestOnlineEndpoint(t *testing.T) {
	h := startHub(t)
	c := connect(t, h, "h1")
	h.Join(c, "alice")
	registry(t, next(t, c))

	w := httptest.NewRecorder()
	NewRouter(h, testOrigin).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/online", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":"alice"`)
	assert.Contains(t, w.Body.String(), `"registered_users":1`)
}

func TestSocketPathsUpgradeThroughRouter(t *testing.T) {
	h, url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, path := range []string{"", "/", "/socket"} {
		conn := dial(t, ctx, url+path)
		require.NoError(t, wsjson.Write(ctx, conn, Message{Type: MessageTypeJoin, Payload: "u" + path}))
		readType(t, ctx, conn, MessageTypeRegistryUpdate)
	}
	assert.Eventually(t, func() bool { return h.IsUserOnline("u/socket") }, time.Second, 10*time.Millisecond)
}

func TestPlainRequestsReachHTTPRoutes(t *testing.T) {
	router := NewRouter(startHub(t), testOrigin)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLongTextIsRelayed(t *testing.T) {
	_, url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dial(t, ctx, url)
	b := dial(t, ctx, url)
	require.NoError(t, wsjson.Write(ctx, b, Message{Type: MessageTypeJoin, Payload: "B"}))
	readType(t, ctx, b, MessageTypeRegistryUpdate)

	text := strings.Repeat("long ", 5000)
	require.NoError(t, wsjson.Write(ctx, a, Message{
		Type:    MessageTypeRelaySend,
		Payload: RelaySendPayload{SenderID: "A", ReceiverID: "B", Text: text},
	}))
	var p RelayDeliverPayload
	require.NoError(t, readType(t, ctx, b, MessageTypeRelayDeliver).ParsePayload(&p))
	assert.Equal(t, text, p.Text)
}
