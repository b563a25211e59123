package api

import "time"

// Conversation is a two-member chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasMember reports whether userID is one of the members.
func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Other returns the member that is not userID.
func (c *Conversation) Other(userID string) string {
	for _, m := range c.Members {
		if m != userID {
			return m
		}
	}
	return ""
}

// Message is a stored chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Img            string    `json:"img,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateMessageRequest is the body of POST /messages.
type CreateMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
	Img            string `json:"img,omitempty"`
}

// Post is a status update on the timeline.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Desc      string    `json:"desc"`
	Img       string    `json:"img,omitempty"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	UserID string `json:"userId"`
	Desc   string `json:"desc"`
	Img    string `json:"img,omitempty"`
}

// UploadResult is returned by POST /upload.
type UploadResult struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// FollowResult is returned by the follow endpoints.
type FollowResult struct {
	Following bool `json:"following"`
	Changed   bool `json:"changed"`
}

// ErrorResponse is the server's error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

type userBody struct {
	UserID string `json:"userId"`
}
