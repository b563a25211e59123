package api

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/vladislav-moscow/Social/pkg/client"
	"github.com/vladislav-moscow/Social/pkg/logger"
)

// Client calls the collaborator REST API.
type Client struct {
	http *resty.Client
}

// New wraps an existing resty client.
func New(http *resty.Client) *Client {
	return &Client{http: http}
}

// Default uses the shared client from pkg/client.
func Default() *Client {
	return New(client.GetClient())
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

func path(format string, ids ...string) string {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}

// GetUserConversations GET /conversations/{userId}
func (c *Client) GetUserConversations(ctx context.Context, userID string) ([]Conversation, error) {
	logger.Debug("Fetching conversations", "user_id", userID)

	var convs []Conversation
	resp, err := c.r(ctx).SetResult(&convs).Get(path("/conversations/%s", userID))
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return convs, nil
}

// FindConversation returns nil when the pair has no conversation yet.
// GET /conversations/find/{a}/{b}
func (c *Client) FindConversation(ctx context.Context, firstUserID, secondUserID string) (*Conversation, error) {
	resp, err := c.r(ctx).Get(path("/conversations/find/%s/%s", firstUserID, secondUserID))
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	var conv Conversation
	if err := json.Unmarshal(body, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &conv, nil
}

// CreateConversation POST /conversations. The server returns the existing
// conversation when the pair already has one.
func (c *Client) CreateConversation(ctx context.Context, senderID, receiverID string) (*Conversation, error) {
	logger.Debug("Creating conversation", "sender_id", senderID, "receiver_id", receiverID)

	var conv Conversation
	resp, err := c.r(ctx).
		SetBody(map[string]string{"senderId": senderID, "receiverId": receiverID}).
		SetResult(&conv).
		Post("/conversations")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetMessages GET /messages/{conversationId}
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	resp, err := c.r(ctx).SetResult(&msgs).Get(path("/messages/%s", conversationID))
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CreateMessage POST /messages
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (*Message, error) {
	logger.Debug("Sending message", "conversation_id", req.ConversationID)

	var msg Message
	resp, err := c.r(ctx).SetBody(req).SetResult(&msg).Post("/messages")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UploadImage sends the file at filePath as multipart {name, file}.
// POST /upload
func (c *Client) UploadImage(ctx context.Context, filePath, name string) (*UploadResult, error) {
	logger.Debug("Uploading image", "path", filePath, "name", name)

	var res UploadResult
	resp, err := c.r(ctx).
		SetFile("file", filePath).
		SetFormData(map[string]string{"name": name}).
		SetResult(&res).
		Post("/upload")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreatePost POST /posts
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	var post Post
	resp, err := c.r(ctx).SetBody(req).SetResult(&post).Post("/posts")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetTimeline GET /posts/timeline/{userId}
func (c *Client) GetTimeline(ctx context.Context, userID string) ([]Post, error) {
	var posts []Post
	resp, err := c.r(ctx).SetResult(&posts).Get(path("/posts/timeline/%s", userID))
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return posts, nil
}

// ToggleLike reports whether userID now likes the post.
// PUT /posts/{id}/like
func (c *Client) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	var out struct {
		Liked bool `json:"liked"`
	}
	resp, err := c.r(ctx).SetBody(userBody{UserID: userID}).SetResult(&out).Put(path("/posts/%s/like", postID))
	if err := CheckResponse(resp, err); err != nil {
		return false, err
	}
	return out.Liked, nil
}

// Follow makes userID follow targetID.
func (c *Client) Follow(ctx context.Context, targetID, userID string) (*FollowResult, error) {
	return c.setFollow(ctx, "follow", targetID, userID)
}

// Unfollow reverses Follow.
func (c *Client) Unfollow(ctx context.Context, targetID, userID string) (*FollowResult, error) {
	return c.setFollow(ctx, "unfollow", targetID, userID)
}

func (c *Client) setFollow(ctx context.Context, action, targetID, userID string) (*FollowResult, error) {
	var res FollowResult
	resp, err := c.r(ctx).
		SetBody(userBody{UserID: userID}).
		SetResult(&res).
		Put(path("/users/%s/", targetID) + action)
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &res, nil
}
