package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/vladislav-moscow/Social/pkg/api"
	clierrors "github.com/vladislav-moscow/Social/pkg/errors"
	"github.com/vladislav-moscow/Social/pkg/formatter"
	"github.com/vladislav-moscow/Social/pkg/logger"
	"github.com/vladislav-moscow/Social/pkg/store"
	"github.com/vladislav-moscow/Social/pkg/websocket"
)

// ListConversations prints the user's conversations. refresh skips the cache.
func (s *ChatService) ListConversations(ctx context.Context, refresh bool) error {
	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if refresh {
		if err := s.conversations.Invalidate(userID); err != nil {
			logger.Warn("Invalidating conversations failed", "error", err)
		}
	}
	convs, err := s.conversations.FetchConversations(ctx, userID)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		s.printf(formatter.Info, "No conversations yet. Start one with 'chat open <friendId>'\n")
		return nil
	}

	current, _ := s.conversations.LoadCurrentChat(userID)
	rows := lo.Map(convs, func(c api.Conversation, _ int) []string {
		mark := ""
		if c.ID == current {
			mark = "*"
		}
		return []string{mark, c.ID, c.Other(userID), c.UpdatedAt.Local().Format(time.DateTime)}
	})

	s.printMu.Lock()
	defer s.printMu.Unlock()
	formatter.FprintTable(s.out, []string{"", "ID", "WITH", "UPDATED"}, rows)
	return nil
}

// Open makes the conversation with friendID current, creating it if needed,
// and prints its history.
func (s *ChatService) Open(ctx context.Context, friendID string) error {
	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	if friendID == "" || friendID == userID {
		return clierrors.ValidationError("friendId", "must name another user")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	conv, err := s.conversations.OpenConversation(ctx, userID, friendID)
	if err != nil {
		return err
	}
	s.printf(formatter.Bold, "Chat with %s\n", friendID)
	return s.printHistory(ctx, userID, conv.ID)
}

func (s *ChatService) printHistory(ctx context.Context, userID, conversationID string) error {
	entries, err := s.messages.FetchMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		s.printf(formatter.Faint, "No messages yet\n")
	}
	for _, e := range entries {
		s.printEntry(userID, e)
	}
	return nil
}

func (s *ChatService) printEntry(userID string, e store.Entry) {
	s.println(formatter.ChatLine(e.Sender, e.Text, e.Img, e.CreatedAt, e.Sender == userID, e.Live))
}

// currentConversation resolves the persisted current chat id to a
// conversation, refreshing the cached list once when the id is unknown.
func (s *ChatService) currentConversation(ctx context.Context, userID string) (*api.Conversation, error) {
	if conv := s.conversations.CurrentChat(); conv != nil && conv.HasMember(userID) {
		return conv, nil
	}
	id, err := s.conversations.LoadCurrentChat(userID)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, clierrors.NoCurrentChatError()
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := s.conversations.Invalidate(userID); err != nil {
				return nil, err
			}
		}
		convs, err := s.conversations.FetchConversations(ctx, userID)
		if err != nil {
			return nil, err
		}
		if conv, ok := lo.Find(convs, func(c api.Conversation) bool { return c.ID == id }); ok {
			if err := s.conversations.SaveCurrentChat(userID, &conv); err != nil {
				return nil, err
			}
			return &conv, nil
		}
	}
	return nil, clierrors.NoCurrentChatError()
}

// Send stores a message in the current conversation, then relays it to the
// other member with the stored id.
func (s *ChatService) Send(ctx context.Context, text, imagePath string) (*api.Message, error) {
	userID, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	if text == "" && imagePath == "" {
		return nil, clierrors.ValidationError("text", "message is empty")
	}
	if err := checkFile(imagePath); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	conv, err := s.currentConversation(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.SendMessage(ctx, store.NewMessage{
		ConversationID: conv.ID,
		Sender:         userID,
		Text:           text,
		ImagePath:      imagePath,
	})
	if err != nil {
		return nil, err
	}
	s.println(formatter.ChatLine(msg.Sender, msg.Text, msg.Img, msg.CreatedAt, true, false))

	if err := s.relayMessage(userID, conv, msg); err != nil {
		logger.Warn("Live delivery failed; message is stored", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

// relayMessage forwards msg over the live connection, opening a short-lived
// one when no listen session is running. The short-lived socket does not
// join, so a listen session of the same user keeps its registry entry.
func (s *ChatService) relayMessage(userID string, conv *api.Conversation, msg *api.Message) error {
	payload := websocket.RelaySend{
		SenderID:       userID,
		ReceiverID:     conv.Other(userID),
		Text:           msg.Text,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
	}

	if s.relay != nil {
		return s.relay.Relay(payload)
	}
	if s.newRelay == nil {
		return nil
	}

	r := s.newRelay()
	if err := r.Connect(); err != nil {
		return err
	}
	defer func() { _ = r.Disconnect() }()
	return r.Relay(payload)
}
