package handlers

import (
	"gorm.io/gorm"

	"github.com/vladislav-moscow/Social/internal/broker"
	"github.com/vladislav-moscow/Social/internal/repository"
	"github.com/vladislav-moscow/Social/internal/storage"
)

// Handlers serves the REST surface consumed by the chat client.
type Handlers struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	posts         repository.PostRepository
	follows       repository.FollowRepository
	publisher     broker.Publisher
	uploader      storage.ImageUploader
	maxUpload     int64
}

// NewHandlers wires repositories over db. Publishing is disabled until
// SetPublisher and uploads until SetUploader.
func NewHandlers(db *gorm.DB) *Handlers {
	return &Handlers{
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		posts:         repository.NewPostRepository(db),
		follows:       repository.NewFollowRepository(db),
		publisher:     broker.NopPublisher{},
		maxUpload:     10 << 20,
	}
}

// SetPublisher announces stored messages to the relay.
func (h *Handlers) SetPublisher(p broker.Publisher) {
	h.publisher = p
}

// SetUploader enables POST /upload with the given size limit in bytes.
func (h *Handlers) SetUploader(u storage.ImageUploader, maxBytes int64) {
	h.uploader = u
	if maxBytes > 0 {
		h.maxUpload = maxBytes
	}
}
