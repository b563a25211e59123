package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vladislav-moscow/Social/internal/models"
)

// MessageRepository stores immutable conversation messages.
type MessageRepository interface {
	// Create stores msg after checking that the conversation exists and the
	// sender belongs to it. It returns the conversation for fan-out.
	Create(ctx context.Context, msg *models.Message) (*models.Conversation, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) (*models.Conversation, error) {
	if msg == nil || msg.ConversationID == "" || msg.Sender == "" {
		return nil, ErrInvalidInput
	}
	defer observe("insert", "messages", time.Now())

	var conv *models.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := NewConversationRepository(tx).Get(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		if !found.HasMember(msg.Sender) {
			return ErrNotAMember
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := tx.Model(found).Update("updated_at", msg.CreatedAt).Error; err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		conv = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	defer observe("select", "messages", time.Now())

	msgs := []*models.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}
