// Package broker fans persisted messages out from the API server to the relay.
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladislav-moscow/Social/internal/models"
)

// MessageCreatedChannel is the pub/sub channel carrying MessageCreated events.
const MessageCreatedChannel = "messages.created"

// MessageCreated announces a message that has been durably stored.
type MessageCreated struct {
	Message    models.Message `json:"message"`
	ReceiverID string         `json:"receiverId"`
}

// Publisher announces stored messages.
type Publisher interface {
	PublishMessageCreated(ctx context.Context, evt MessageCreated) error
}

// NopPublisher discards events. Used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishMessageCreated(context.Context, MessageCreated) error { return nil }

func encode(evt MessageCreated) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode message created: %w", err)
	}
	return data, nil
}

func decode(payload string) (MessageCreated, error) {
	var evt MessageCreated
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return MessageCreated{}, fmt.Errorf("decode message created: %w", err)
	}
	if evt.Message.ID == "" || evt.ReceiverID == "" {
		return MessageCreated{}, fmt.Errorf("decode message created: missing message id or receiver")
	}
	return evt, nil
}
