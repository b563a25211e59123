package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/vladislav-moscow/Social/pkg/api"
	"github.com/vladislav-moscow/Social/pkg/localstore"
	"github.com/vladislav-moscow/Social/pkg/logger"
)

// ConversationStore caches one user's conversation list and remembers the
// conversation they had open.
type ConversationStore struct {
	api ConversationAPI
	kv  KV
	ttl time.Duration

	mu            sync.RWMutex
	owner         string
	loaded        bool
	conversations []api.Conversation
	current       *api.Conversation
	err           string
}

// NewConversationStore creates a store. A zero ttl uses DefaultTTL.
func NewConversationStore(client ConversationAPI, kv KV, ttl time.Duration) *ConversationStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ConversationStore{api: client, kv: kv, ttl: ttl}
}

// FetchConversations returns userID's conversations, from the durable cache
// while it is fresh and from the server otherwise.
func (s *ConversationStore) FetchConversations(ctx context.Context, userID string) ([]api.Conversation, error) {
	key := localstore.UserKey(userID, localstore.KeyConversations)

	var cached []api.Conversation
	ok, err := s.kv.Get(key, &cached)
	if err != nil {
		logger.Warn("Reading cached conversations failed", "user_id", userID, "error", err)
	}
	if ok {
		logger.Debug("Conversations served from cache", "user_id", userID, "count", len(cached))
		s.setList(userID, cached)
		return cached, nil
	}

	convs, err := s.api.GetUserConversations(ctx, userID)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if convs == nil {
		convs = []api.Conversation{}
	}
	if err := s.kv.Set(key, convs, s.ttl); err != nil {
		logger.Warn("Caching conversations failed", "user_id", userID, "error", err)
	}
	s.setList(userID, convs)
	return convs, nil
}

// Invalidate drops the cached list so the next fetch goes to the server.
func (s *ConversationStore) Invalidate(userID string) error {
	s.mu.Lock()
	if s.owner == userID {
		s.loaded = false
	}
	s.mu.Unlock()
	return s.kv.Delete(localstore.UserKey(userID, localstore.KeyConversations))
}

// CreateConversation finds or creates the conversation between userID and
// friendID and makes it current.
func (s *ConversationStore) CreateConversation(ctx context.Context, userID, friendID string) (*api.Conversation, error) {
	conv, err := s.api.CreateConversation(ctx, userID, friendID)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	s.add(userID, *conv)
	if err := s.SaveCurrentChat(userID, conv); err != nil {
		return conv, err
	}
	return conv, nil
}

// GetConversation returns the conversation between a and b, or nil.
func (s *ConversationStore) GetConversation(ctx context.Context, a, b string) (*api.Conversation, error) {
	conv, err := s.api.FindConversation(ctx, a, b)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	return conv, nil
}

// OpenConversation returns the existing conversation with friendID, creating
// it if needed, and makes it current.
func (s *ConversationStore) OpenConversation(ctx context.Context, userID, friendID string) (*api.Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return s.CreateConversation(ctx, userID, friendID)
	}
	s.add(userID, *conv)
	if err := s.SaveCurrentChat(userID, conv); err != nil {
		return conv, err
	}
	return conv, nil
}

// SaveCurrentChat persists conv's id as userID's open conversation.
func (s *ConversationStore) SaveCurrentChat(userID string, conv *api.Conversation) error {
	if conv == nil {
		return fmt.Errorf("no conversation to save")
	}
	s.mu.Lock()
	c := *conv
	s.current = &c
	s.mu.Unlock()

	if err := s.kv.Set(localstore.UserKey(userID, localstore.KeyCurrentChat), conv.ID, 0); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// LoadCurrentChat returns the persisted open conversation id, or "".
func (s *ConversationStore) LoadCurrentChat(userID string) (string, error) {
	var id string
	if _, err := s.kv.Get(localstore.UserKey(userID, localstore.KeyCurrentChat), &id); err != nil {
		return "", err
	}
	return id, nil
}

// ClearConversations forgets everything stored for userID.
func (s *ConversationStore) ClearConversations(userID string) error {
	s.mu.Lock()
	if s.owner == userID {
		s.owner = ""
		s.loaded = false
		s.conversations = nil
		s.current = nil
		s.err = ""
	}
	s.mu.Unlock()
	return s.kv.ClearUser(userID)
}

// Conversations returns a copy of the in-memory list.
func (s *ConversationStore) Conversations() []api.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Conversation(nil), s.conversations...)
}

// CurrentChat returns the open conversation, if any.
func (s *ConversationStore) CurrentChat() *api.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// Err returns the last recorded error message.
func (s *ConversationStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *ConversationStore) setList(userID string, convs []api.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != userID {
		s.current = nil
	}
	s.owner = userID
	s.loaded = true
	s.conversations = append([]api.Conversation(nil), convs...)
	s.err = ""
}

// add merges conv into the list. The durable copy is rewritten when the full
// list is loaded and dropped otherwise, so a partial list is never cached.
func (s *ConversationStore) add(userID string, conv api.Conversation) {
	s.mu.Lock()
	if s.owner != userID {
		s.owner = userID
		s.loaded = false
		s.conversations = nil
		s.current = nil
	}
	s.conversations = lo.UniqBy(append(s.conversations, conv), func(c api.Conversation) string { return c.ID })
	s.err = ""
	loaded := s.loaded
	snapshot := append([]api.Conversation(nil), s.conversations...)
	s.mu.Unlock()

	key := localstore.UserKey(userID, localstore.KeyConversations)
	var err error
	if loaded {
		err = s.kv.Set(key, snapshot, s.ttl)
	} else {
		err = s.kv.Delete(key)
	}
	if err != nil {
		logger.Warn("Updating cached conversations failed", "user_id", userID, "error", err)
	}
}

func (s *ConversationStore) fail(err error) {
	logger.Error("Conversation request failed", "error", err)
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
}
