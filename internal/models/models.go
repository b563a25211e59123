package models

import (
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is the durable thread between exactly two users. PairKey holds
// the sorted member ids and is unique, so a pair never has two conversations.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MemberA   string    `gorm:"not null;index" json:"-"`
	MemberB   string    `gorm:"not null;index" json:"-"`
	PairKey   string    `gorm:"uniqueIndex;not null" json:"-"`
	Members   []string  `gorm:"-" json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewConversation builds a conversation between a and b, keeping the caller's
// member order for display.
func NewConversation(a, b string) *Conversation {
	c := &Conversation{MemberA: a, MemberB: b, PairKey: PairKey(a, b)}
	c.Members = []string{a, b}
	return c
}

// PairKey is the order-independent identity of a member pair. Ids are
// query-escaped before joining, so a ":" inside an id cannot shift the split.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return url.QueryEscape(pair[0]) + ":" + url.QueryEscape(pair[1])
}

// HasMember reports whether userID takes part in the conversation.
func (c *Conversation) HasMember(userID string) bool {
	return c.MemberA == userID || c.MemberB == userID
}

// Other returns the member that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.MemberA == userID {
		return c.MemberB
	}
	return c.MemberA
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	c.PairKey = PairKey(c.MemberA, c.MemberB)
	return nil
}

func (c *Conversation) AfterFind(tx *gorm.DB) error {
	c.Members = []string{c.MemberA, c.MemberB}
	return nil
}

// Message is immutable once stored.
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	Sender         string    `gorm:"not null" json:"sender"`
	Text           string    `gorm:"type:text" json:"text"`
	Img            string    `json:"img,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}

// Post is a user's status update. Likes is filled from PostLike rows.
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"not null;index" json:"userId"`
	Desc      string    `gorm:"type:text" json:"desc"`
	Img       string    `json:"img,omitempty"`
	Likes     []string  `gorm:"-" json:"likes"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

// PostLike records one user liking one post.
type PostLike struct {
	PostID    string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

// Follow is a directed edge in the follow graph.
type Follow struct {
	FollowerID  string    `gorm:"primaryKey" json:"followerId"`
	FollowingID string    `gorm:"primaryKey;index" json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// All lists every model for migration.
func All() []interface{} {
	return []interface{}{
		&Conversation{},
		&Message{},
		&Post{},
		&PostLike{},
		&Follow{},
	}
}

func generateUUID() string {
	return uuid.New().String()
}
