// Package store holds the client-side caches for conversations, messages and
// posts. Each store guards its state with a RWMutex and never holds the lock
// across a network call.
package store

import (
	"context"
	"time"

	"github.com/vladislav-moscow/Social/pkg/api"
)

// DefaultTTL bounds how long a durable cache entry is trusted.
const DefaultTTL = 10 * time.Minute

// KV is the durable key/value backend, satisfied by *localstore.Store.
type KV interface {
	Get(key string, v interface{}) (bool, error)
	Set(key string, v interface{}, ttl time.Duration) error
	Delete(key string) error
	ClearUser(userID string) error
}

// ConversationAPI is the subset of the REST client used by ConversationStore.
type ConversationAPI interface {
	GetUserConversations(ctx context.Context, userID string) ([]api.Conversation, error)
	FindConversation(ctx context.Context, firstUserID, secondUserID string) (*api.Conversation, error)
	CreateConversation(ctx context.Context, senderID, receiverID string) (*api.Conversation, error)
}

// MessageAPI is the subset of the REST client used by MessageStore.
type MessageAPI interface {
	GetMessages(ctx context.Context, conversationID string) ([]api.Message, error)
	CreateMessage(ctx context.Context, req api.CreateMessageRequest) (*api.Message, error)
	UploadImage(ctx context.Context, filePath, name string) (*api.UploadResult, error)
}

// PostAPI is the subset of the REST client used by PostStore.
type PostAPI interface {
	GetTimeline(ctx context.Context, userID string) ([]api.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
}

var (
	_ ConversationAPI = (*api.Client)(nil)
	_ MessageAPI      = (*api.Client)(nil)
	_ PostAPI         = (*api.Client)(nil)
)
