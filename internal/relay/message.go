package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vladislav-moscow/Social/internal/models"
	"github.com/vladislav-moscow/Social/internal/presence"
)

// FlexibleTime accepts Unix milliseconds or RFC3339 and always writes RFC3339.
type FlexibleTime struct {
	time.Time
}

func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Relay protocol event types.
const (
	MessageTypeJoin           = "join"
	MessageTypeRegistryUpdate = "registry-update"
	MessageTypeRelaySend      = "relay-send"
	MessageTypeRelayDeliver   = "relay-deliver"
	MessageTypeMessageCreated = "message-created"

	MessageTypeSystem = "system"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      string       `json:"type"`
	Payload   interface{}  `json:"payload,omitempty"`
	ID        string       `json:"id,omitempty"`
	ReplyTo   string       `json:"reply_to,omitempty"`
	Timestamp FlexibleTime `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewReply creates a message answering original.
func NewReply(original *Message, msgType string, payload interface{}) *Message {
	m := NewMessage(msgType, payload)
	m.ReplyTo = original.ID
	return m
}

// NewErrorMessage creates an error message
func NewErrorMessage(code, message string) *Message {
	return NewMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

// ParsePayload decodes the loosely typed payload into target.
func (m *Message) ParsePayload(target interface{}) error {
	if m.Payload == nil {
		return nil
	}
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// JoinUserID extracts the user id from a join payload, which may be a bare
// string or an object with a userId field.
func (m *Message) JoinUserID() (string, error) {
	switch p := m.Payload.(type) {
	case string:
		return strings.TrimSpace(p), nil
	case nil:
		return "", nil
	}
	var obj JoinPayload
	if err := m.ParsePayload(&obj); err != nil {
		return "", fmt.Errorf("invalid join payload: %w", err)
	}
	return strings.TrimSpace(obj.UserID), nil
}

// JoinPayload is the object form of a join.
type JoinPayload struct {
	UserID string `json:"userId"`
}

// RegistryUpdatePayload is the full registry snapshot.
type RegistryUpdatePayload []presence.Entry

// RelaySendPayload asks the relay to forward text to a connected recipient.
// MessageID and ConversationID are set when the sender already stored it.
type RelaySendPayload struct {
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId" validate:"required"`
	Text           string `json:"text"`
	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// RelayDeliverPayload is what the recipient receives.
type RelayDeliverPayload struct {
	SenderID       string `json:"senderId"`
	Text           string `json:"text"`
	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// MessageCreatedPayload carries a stored message to its recipient.
type MessageCreatedPayload = models.Message

// ErrorPayload represents an error message payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingPayload represents a ping message payload
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

// PongPayload represents a pong message payload
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// SystemPayload announces connection lifecycle events.
type SystemPayload struct {
	Event    string `json:"event"`
	Message  string `json:"message,omitempty"`
	SocketID string `json:"socketId,omitempty"`
}
