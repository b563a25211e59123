package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislav-moscow/Social/internal/broker"
	"github.com/vladislav-moscow/Social/internal/models"
	"github.com/vladislav-moscow/Social/internal/presence"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

// connect registers an in-process client and consumes its welcome frame.
func connect(t *testing.T, h *Hub, socketID string) *Client {
	t.Helper()
	c := NewClient(h, nil, socketID)
	h.Register(c)
	msg := next(t, c)
	require.Equal(t, MessageTypeSystem, msg.Type)
	return c
}

func next(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.SocketID)
		return nil
	}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message for %s: %s", c.SocketID, data)
	case <-time.After(100 * time.Millisecond):
	}
}

func registry(t *testing.T, msg *Message) []presence.Entry {
	t.Helper()
	require.Equal(t, MessageTypeRegistryUpdate, msg.Type)
	var entries []presence.Entry
	require.NoError(t, msg.ParsePayload(&entries))
	return entries
}

// flush waits until every previously queued command has been applied.
func flush(t *testing.T, h *Hub) {
	t.Helper()
	barrier := connect(t, h, fmt.Sprintf("barrier-%d", time.Now().UnixNano()))
	h.Unregister(barrier)
	require.Eventually(t, barrier.IsClosed, time.Second, 5*time.Millisecond)
}

func TestJoinBroadcastsToEveryConnection(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "hA")
	observer := connect(t, h, "hObs")

	h.Join(a, "alice")

	for _, c := range []*Client{a, observer} {
		entries := registry(t, next(t, c))
		require.Len(t, entries, 1)
		assert.Equal(t, "alice", entries[0].UserID)
		assert.Equal(t, "hA", entries[0].SocketID)
	}
}

func TestDuplicateJoinOverwritesHandle(t *testing.T) {
	h := startHub(t)
	h1 := connect(t, h, "h1")
	h2 := connect(t, h, "h2")

	h.Join(h1, "alice")
	registry(t, next(t, h1))
	registry(t, next(t, h2))

	h.Join(h2, "alice")
	entries := registry(t, next(t, h2))
	require.Len(t, entries, 1)
	assert.Equal(t, "h2", entries[0].SocketID)
	registry(t, next(t, h1))

	// Relays now reach the newest connection only.
	sender := connect(t, h, "hS")
	h.Relay(sender, RelaySendPayload{SenderID: "bob", ReceiverID: "alice", Text: "hi"})
	assert.Equal(t, MessageTypeRelayDeliver, next(t, h2).Type)
	expectNone(t, h1)
}

func TestEmptyJoinIsRejectedWithoutBroadcast(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "hA")
	observer := connect(t, h, "hObs")

	h.Join(a, "")

	msg := next(t, a)
	assert.Equal(t, MessageTypeError, msg.Type)
	var p ErrorPayload
	require.NoError(t, msg.ParsePayload(&p))
	assert.Equal(t, "invalid_join", p.Code)
	expectNone(t, observer)
}

func TestRelayToRegisteredRecipient(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "hA")
	b := connect(t, h, "hB")
	c := connect(t, h, "hC")

	h.Join(a, "A")
	h.Join(b, "B")
	for _, cl := range []*Client{a, b, c} {
		registry(t, next(t, cl))
		registry(t, next(t, cl))
	}

	h.Relay(a, RelaySendPayload{SenderID: "A", ReceiverID: "B", Text: "hello"})

	msg := next(t, b)
	require.Equal(t, MessageTypeRelayDeliver, msg.Type)
	var p RelayDeliverPayload
	require.NoError(t, msg.ParsePayload(&p))
	assert.Equal(t, RelayDeliverPayload{SenderID: "A", Text: "hello"}, p)

	expectNone(t, a)
	expectNone(t, b)
	expectNone(t, c)
}

func TestRelayCarriesMessageIdentity(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "hA")
	b := connect(t, h, "hB")
	h.Join(b, "B")
	registry(t, next(t, a))
	registry(t, next(t, b))

	h.Relay(a, RelaySendPayload{ReceiverID: "B", Text: "hi", MessageID: "m1", ConversationID: "c1"})

	var p RelayDeliverPayload
	require.NoError(t, next(t, b).ParsePayload(&p))
	assert.Equal(t, "m1", p.MessageID)
	assert.Equal(t, "c1", p.ConversationID)
	assert.Empty(t, p.SenderID, "sender never joined and sent no senderId")
}

func TestRelaySenderDefaultsToJoinedUser(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "hA")
	b := connect(t, h, "hB")
	h.Join(a, "A")
	h.Join(b, "B")
	for i := 0; i < 2; i++ {
		registry(t, next(t, a))
		registry(t, next(t, b))
	}

	h.Relay(a, RelaySendPayload{ReceiverID: "B", Text: "yo"})

	var p RelayDeliverPayload
	require.NoError(t, next(t, b).ParsePayload(&p))
	assert.Equal(t, "A", p.SenderID)
}

func TestRelayToAbsentRecipientIsDropped(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "hA")
	other := connect(t, h, "hO")
	h.Join(a, "A")
	registry(t, next(t, a))
	registry(t, next(t, other))

	before := h.GetMetrics().Dropped
	h.Relay(a, RelaySendPayload{SenderID: "A", ReceiverID: "nobody", Text: "hello?"})
	flush(t, h)

	// The flush barrier triggers one registry-update on leave.
	registry(t, next(t, a))
	registry(t, next(t, other))
	expectNone(t, a)
	expectNone(t, other)
	assert.Equal(t, before+1, h.GetMetrics().Dropped)
}

func TestLeaveRemovesOnlyItsEntryAndBroadcastsOnce(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "hA")
	b := connect(t, h, "hB")
	h.Join(a, "A")
	h.Join(b, "B")
	for i := 0; i < 2; i++ {
		registry(t, next(t, b))
		registry(t, next(t, a))
	}

	h.Unregister(a)
	h.Unregister(a)

	entries := registry(t, next(t, b))
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].UserID)
	expectNone(t, b)
	assert.True(t, a.IsClosed())
	assert.False(t, h.IsUserOnline("A"))
	assert.True(t, h.IsUserOnline("B"))
}

func TestLeaveOfStaleHandleKeepsNewerEntry(t *testing.T) {
	h := startHub(t)
	h1 := connect(t, h, "h1")
	h2 := connect(t, h, "h2")
	h.Join(h1, "alice")
	h.Join(h2, "alice")
	for i := 0; i < 2; i++ {
		registry(t, next(t, h2))
	}

	h.Unregister(h1)

	entries := registry(t, next(t, h2))
	require.Len(t, entries, 1)
	assert.Equal(t, "h2", entries[0].SocketID)
}

func TestRelayFromUnjoinedSocketKeepsSenderPresence(t *testing.T) {
	h := startHub(t)
	listener := connect(t, h, "hListen")
	bob := connect(t, h, "hBob")
	h.Join(listener, "alice")
	h.Join(bob, "bob")
	for i := 0; i < 2; i++ {
		registry(t, next(t, listener))
		registry(t, next(t, bob))
	}

	oneShot := connect(t, h, "hOneShot")
	h.Relay(oneShot, RelaySendPayload{SenderID: "alice", ReceiverID: "bob", Text: "from another terminal", MessageID: "m1"})

	msg := next(t, bob)
	require.Equal(t, MessageTypeRelayDeliver, msg.Type)
	var p RelayDeliverPayload
	require.NoError(t, msg.ParsePayload(&p))
	assert.Equal(t, "alice", p.SenderID)
	assert.Equal(t, "m1", p.MessageID)

	h.Unregister(oneShot)
	entries := registry(t, next(t, listener))
	require.Len(t, entries, 2)
	assert.True(t, h.IsUserOnline("alice"))

	entry, ok := h.registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "hListen", entry.SocketID)
}

func TestDeliverPersisted(t *testing.T) {
	h := startHub(t)
	b := connect(t, h, "hB")
	h.Join(b, "B")
	registry(t, next(t, b))

	h.DeliverPersisted(broker.MessageCreated{
		Message:    models.Message{ID: "m1", ConversationID: "c1", Sender: "A", Text: "stored"},
		ReceiverID: "B",
	})
	h.DeliverPersisted(broker.MessageCreated{
		Message:    models.Message{ID: "m2", ConversationID: "c9", Sender: "A", Text: "nobody home"},
		ReceiverID: "Z",
	})

	msg := next(t, b)
	require.Equal(t, MessageTypeMessageCreated, msg.Type)
	var m models.Message
	require.NoError(t, msg.ParsePayload(&m))
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "stored", m.Text)
	expectNone(t, b)
}

func TestSlowClientIsDropped(t *testing.T) {
	h := startHub(t)
	slow := connect(t, h, "slow")
	fast := connect(t, h, "fast")

	go func() {
		for {
			select {
			case <-fast.send:
			case <-fast.ctx.Done():
				return
			}
		}
	}()

	for i := 0; i <= sendBufferSize; i++ {
		h.Join(fast, fmt.Sprintf("user-%d", i))
	}

	require.Eventually(t, slow.IsClosed, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, h.GetMetrics().ConnectionsDropped, int64(1))
}

func TestShutdownClosesClients(t *testing.T) {
	h := NewHub()
	go h.Run()
	c := connect(t, h, "h1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
	assert.True(t, c.IsClosed())
	assert.Zero(t, h.GetMetrics().ActiveConnections)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(), "Request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow(), "Request 11 should be denied")

	time.Sleep(300 * time.Millisecond)
	assert.True(t, rl.Allow(), "Request after wait should be allowed")
}

func TestMetricsSnapshotString(t *testing.T) {
	s := MetricsSnapshot{ActiveConnections: 2, TotalConnections: 5, RegisteredUsers: 1, Dropped: 3}.String()
	assert.Contains(t, s, "connections=2/5")
	assert.Contains(t, s, "users=1")
	assert.Contains(t, s, "dropped=3")
}
