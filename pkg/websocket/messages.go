package websocket

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of relay frame.
type MessageType string

const (
	MessageTypeJoin           MessageType = "join"
	MessageTypeRegistryUpdate MessageType = "registry-update"
	MessageTypeRelaySend      MessageType = "relay-send"
	MessageTypeRelayDeliver   MessageType = "relay-deliver"
	MessageTypeMessageCreated MessageType = "message-created"
	MessageTypeSystem         MessageType = "system"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"

	// MessageTypeAny subscribes to every frame.
	MessageTypeAny MessageType = ""
)

// Envelope is a relay frame. Payload is decoded lazily with Decode.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ID        string          `json:"id,omitempty"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

type outgoing struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// JoinPayload registers the connection as a user.
type JoinPayload struct {
	UserID string `json:"userId"`
}

// RegistryEntry is one connected user.
type RegistryEntry struct {
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

// RelaySend asks the relay to forward text to ReceiverID.
type RelaySend struct {
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Text           string `json:"text"`
	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// RelayDeliver is a forwarded message.
type RelayDeliver struct {
	SenderID       string `json:"senderId"`
	Text           string `json:"text"`
	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ErrorPayload is sent by the relay when a frame is rejected.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SystemPayload announces connection lifecycle events.
type SystemPayload struct {
	Event    string `json:"event"`
	Message  string `json:"message,omitempty"`
	SocketID string `json:"socketId,omitempty"`
}

// PingPayload carries the client clock for latency measurement.
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}
