package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vladislav-moscow/Social/internal/models"
)

// ConversationRepository stores two-member conversations.
type ConversationRepository interface {
	// FindOrCreate returns the conversation for the pair, creating it if needed.
	// created is false when it already existed. Safe under concurrent calls.
	FindOrCreate(ctx context.Context, a, b string) (conv *models.Conversation, created bool, err error)
	FindBetween(ctx context.Context, a, b string) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	ListForMember(ctx context.Context, userID string) ([]*models.Conversation, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) FindOrCreate(ctx context.Context, a, b string) (*models.Conversation, bool, error) {
	if a == "" || b == "" || a == b {
		return nil, false, ErrInvalidInput
	}
	defer observe("insert", "conversations", time.Now())

	conv := models.NewConversation(a, b)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(conv)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create conversation: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return conv, true, nil
	}

	existing, err := r.FindBetween(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *conversationRepository) FindBetween(ctx context.Context, a, b string) (*models.Conversation, error) {
	defer observe("select", "conversations", time.Now())

	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("pair_key = ?", models.PairKey(a, b)).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	defer observe("select", "conversations", time.Now())

	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListForMember(ctx context.Context, userID string) ([]*models.Conversation, error) {
	defer observe("select", "conversations", time.Now())

	convs := []*models.Conversation{}
	err := r.db.WithContext(ctx).
		Where("member_a = ? OR member_b = ?", userID, userID).
		Order("created_at ASC, id ASC").
		Find(&convs).Error
	return convs, err
}
