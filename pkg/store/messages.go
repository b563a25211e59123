package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislav-moscow/Social/pkg/api"
	"github.com/vladislav-moscow/Social/pkg/logger"
)

// NewMessage is an outgoing message. ImagePath, when set, is uploaded first.
type NewMessage struct {
	ConversationID string
	Sender         string
	Text           string
	ImagePath      string
}

// LiveEvent is a message delivered by the relay. MessageID is set when the
// sender stored the message before relaying it.
type LiveEvent struct {
	SenderID       string
	Text           string
	MessageID      string
	ConversationID string
}

// Entry is one row of a conversation's list. Live entries came from the
// relay and have not been matched to a stored message yet.
type Entry struct {
	api.Message
	Live bool `json:"live,omitempty"`
}

// MessageStore keeps each conversation's messages in arrival order. A message
// id appears at most once per conversation.
type MessageStore struct {
	api MessageAPI

	mu       sync.RWMutex
	lists    map[string][]Entry
	fetching int
	err      string
}

// NewMessageStore creates an empty store.
func NewMessageStore(client MessageAPI) *MessageStore {
	return &MessageStore{api: client, lists: make(map[string][]Entry)}
}

// FetchMessages replaces the conversation's list with the server history.
func (s *MessageStore) FetchMessages(ctx context.Context, conversationID string) ([]Entry, error) {
	s.mu.Lock()
	s.fetching++
	s.mu.Unlock()

	msgs, err := s.api.GetMessages(ctx, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching--
	if err != nil {
		s.recordLocked(err)
		return nil, err
	}

	list := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		list = append(list, Entry{Message: m})
	}
	s.lists[conversationID] = list
	s.err = ""
	return append([]Entry(nil), list...), nil
}

// SendMessage uploads the optional image, stores the message and appends the
// server's record. Nothing is added when any step fails.
func (s *MessageStore) SendMessage(ctx context.Context, msg NewMessage) (*api.Message, error) {
	req := api.CreateMessageRequest{
		ConversationID: msg.ConversationID,
		Sender:         msg.Sender,
		Text:           msg.Text,
	}

	if msg.ImagePath != "" {
		name := UploadName(msg.ImagePath)
		res, err := s.api.UploadImage(ctx, msg.ImagePath, name)
		if err != nil {
			s.record(err)
			return nil, err
		}
		req.Img = res.Name
	}

	stored, err := s.api.CreateMessage(ctx, req)
	if err != nil {
		s.record(err)
		return nil, err
	}

	s.ApplyPersisted(*stored)
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
	return stored, nil
}

// UploadName keeps the file's extension under a fresh unique name.
func UploadName(path string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(path))
}

// UpdateMessages appends a relayed event. It reports false when the event
// carries the id of a message already in the list.
func (s *MessageStore) UpdateMessages(conversationID string, evt LiveEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[conversationID]
	if evt.MessageID != "" && indexByID(list, evt.MessageID) >= 0 {
		return false
	}
	s.lists[conversationID] = append(list, Entry{
		Message: api.Message{
			ID:             evt.MessageID,
			ConversationID: conversationID,
			Sender:         evt.SenderID,
			Text:           evt.Text,
			CreatedAt:      time.Now().UTC(),
		},
		Live: true,
	})
	return true
}

// ApplyPersisted merges a stored message. A live entry with the same id, or
// an id-less live entry with the same sender and text, is replaced in place.
// It reports whether the list grew.
func (s *MessageStore) ApplyPersisted(msg api.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[msg.ConversationID]
	if i := indexByID(list, msg.ID); i >= 0 {
		list[i] = Entry{Message: msg}
		return false
	}
	for i, e := range list {
		if e.Live && e.ID == "" && e.Sender == msg.Sender && e.Text == msg.Text {
			list[i] = Entry{Message: msg}
			return false
		}
	}
	s.lists[msg.ConversationID] = append(list, Entry{Message: msg})
	return true
}

func indexByID(list []Entry, id string) int {
	if id == "" {
		return -1
	}
	for i, e := range list {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Messages returns a copy of the conversation's list.
func (s *MessageStore) Messages(conversationID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.lists[conversationID]...)
}

// ClearMessages forgets one conversation, or all of them when id is empty.
func (s *MessageStore) ClearMessages(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conversationID == "" {
		s.lists = make(map[string][]Entry)
		return
	}
	delete(s.lists, conversationID)
}

// IsFetching reports whether a FetchMessages call is in flight.
func (s *MessageStore) IsFetching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetching > 0
}

// Err returns the last recorded error message.
func (s *MessageStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *MessageStore) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(err)
}

func (s *MessageStore) recordLocked(err error) {
	logger.Error("Message request failed", "error", err)
	s.err = err.Error()
}
