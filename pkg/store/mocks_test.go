package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vladislav-moscow/Social/pkg/api"
	"github.com/vladislav-moscow/Social/pkg/localstore"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetUserConversations(ctx context.Context, userID string) ([]api.Conversation, error) {
	args := m.Called(ctx, userID)
	convs, _ := args.Get(0).([]api.Conversation)
	return convs, args.Error(1)
}

func (m *mockAPI) FindConversation(ctx context.Context, a, b string) (*api.Conversation, error) {
	args := m.Called(ctx, a, b)
	conv, _ := args.Get(0).(*api.Conversation)
	return conv, args.Error(1)
}

func (m *mockAPI) CreateConversation(ctx context.Context, sender, receiver string) (*api.Conversation, error) {
	args := m.Called(ctx, sender, receiver)
	conv, _ := args.Get(0).(*api.Conversation)
	return conv, args.Error(1)
}

func (m *mockAPI) GetMessages(ctx context.Context, conversationID string) ([]api.Message, error) {
	args := m.Called(ctx, conversationID)
	msgs, _ := args.Get(0).([]api.Message)
	return msgs, args.Error(1)
}

func (m *mockAPI) CreateMessage(ctx context.Context, req api.CreateMessageRequest) (*api.Message, error) {
	args := m.Called(ctx, req)
	msg, _ := args.Get(0).(*api.Message)
	return msg, args.Error(1)
}

func (m *mockAPI) UploadImage(ctx context.Context, filePath, name string) (*api.UploadResult, error) {
	args := m.Called(ctx, filePath, name)
	res, _ := args.Get(0).(*api.UploadResult)
	return res, args.Error(1)
}

func (m *mockAPI) GetTimeline(ctx context.Context, userID string) ([]api.Post, error) {
	args := m.Called(ctx, userID)
	posts, _ := args.Get(0).([]api.Post)
	return posts, args.Error(1)
}

func (m *mockAPI) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	args := m.Called(ctx, postID, userID)
	return args.Bool(0), args.Error(1)
}

func openKV(t *testing.T) *localstore.Store {
	t.Helper()
	kv, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}
