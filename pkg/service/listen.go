package service

import (
	"context"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/vladislav-moscow/Social/pkg/api"
	"github.com/vladislav-moscow/Social/pkg/formatter"
	"github.com/vladislav-moscow/Social/pkg/logger"
	"github.com/vladislav-moscow/Social/pkg/prompter"
	"github.com/vladislav-moscow/Social/pkg/store"
	"github.com/vladislav-moscow/Social/pkg/websocket"
)

// Listen joins the relay as the logged-in user and prints presence changes
// and messages for the current conversation until ctx ends. When input is
// non-nil every line read from it is sent as a message.
func (s *ChatService) Listen(ctx context.Context, input io.Reader) error {
	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	if s.newRelay == nil {
		return errNoRelay
	}

	reqCtx, cancel := s.withTimeout(ctx)
	conv, err := s.currentConversation(reqCtx, userID)
	if err != nil && !isNoChat(err) {
		cancel()
		return err
	}
	if conv != nil {
		s.printf(formatter.Bold, "Chat with %s\n", conv.Other(userID))
		if err := s.printHistory(reqCtx, userID, conv.ID); err != nil {
			cancel()
			return err
		}
	} else {
		s.printf(formatter.Warning, "No conversation is open; only presence is shown\n")
	}
	cancel()

	r := s.newRelay()
	s.subscribe(r, userID, conv)
	if err := r.Connect(); err != nil {
		return err
	}
	defer func() {
		s.relay = nil
		_ = r.Disconnect()
	}()
	if err := r.Join(userID); err != nil {
		return err
	}
	s.relay = r
	logger.Debug("Listening", "user_id", userID)

	if input == nil || conv == nil {
		<-ctx.Done()
		return nil
	}

	err = prompter.ReadLines(ctx, input, func(line string) error {
		if _, err := s.Send(ctx, line, ""); err != nil {
			s.printf(formatter.Error, "Error: %v\n", err)
		}
		return nil
	})
	if err == context.Canceled || err == context.DeadlineExceeded {
		return nil
	}
	return err
}

func (s *ChatService) subscribe(r Relay, userID string, conv *api.Conversation) {
	r.On(websocket.MessageTypeRegistryUpdate, func(e websocket.Envelope) {
		var entries []websocket.RegistryEntry
		if err := e.Decode(&entries); err != nil {
			logger.Warn("Bad registry update", "error", err)
			return
		}
		online := lo.Without(lo.Uniq(lo.Map(entries, func(en websocket.RegistryEntry, _ int) string {
			return en.UserID
		})), userID)
		if len(online) == 0 {
			s.printf(formatter.Faint, "Nobody else is online\n")
			return
		}
		s.printf(formatter.Faint, "Online: %s\n", strings.Join(online, ", "))
	})

	r.On(websocket.MessageTypeRelayDeliver, func(e websocket.Envelope) {
		var d websocket.RelayDeliver
		if err := e.Decode(&d); err != nil {
			logger.Warn("Bad relay delivery", "error", err)
			return
		}
		if conv == nil {
			s.printf(formatter.Info, "New message from %s\n", d.SenderID)
			return
		}
		// Deliveries without a conversation id belong to the open chat only
		// when they come from its other member.
		convID := d.ConversationID
		if convID == "" && d.SenderID == conv.Other(userID) {
			convID = conv.ID
		}
		if convID != conv.ID {
			s.printf(formatter.Info, "New message from %s\n", d.SenderID)
			return
		}
		if s.messages.UpdateMessages(conv.ID, store.LiveEvent{
			SenderID:       d.SenderID,
			Text:           d.Text,
			MessageID:      d.MessageID,
			ConversationID: conv.ID,
		}) {
			s.printLast(userID, conv.ID)
		}
	})

	r.On(websocket.MessageTypeMessageCreated, func(e websocket.Envelope) {
		var m api.Message
		if err := e.Decode(&m); err != nil {
			logger.Warn("Bad stored message event", "error", err)
			return
		}
		grew := s.messages.ApplyPersisted(m)
		if conv == nil || m.ConversationID != conv.ID {
			if grew {
				s.printf(formatter.Info, "New message from %s\n", m.Sender)
			}
			return
		}
		if grew {
			s.printLast(userID, conv.ID)
		}
	})

	r.On(websocket.MessageTypeError, func(e websocket.Envelope) {
		var p websocket.ErrorPayload
		_ = e.Decode(&p)
		s.printf(formatter.Warning, "Relay: %s\n", p.Message)
	})
}

func (s *ChatService) printLast(userID, conversationID string) {
	if list := s.messages.Messages(conversationID); len(list) > 0 {
		s.printEntry(userID, list[len(list)-1])
	}
}
