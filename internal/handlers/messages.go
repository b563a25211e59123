package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/broker"
	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/models"
	"github.com/vladislav-moscow/Social/internal/repository"
	"github.com/vladislav-moscow/Social/internal/util"
)

const publishTimeout = 2 * time.Second

type createMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
	Img            string `json:"img"`
}

// CreateMessage stores a message and announces it to the relay.
// POST /messages
func (h *Handlers) CreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}

	switch {
	case req.ConversationID == "":
		util.RespondValidationError(c, "conversationId", "conversationId is required")
		return
	case req.Sender == "":
		util.RespondValidationError(c, "sender", "sender is required")
		return
	case strings.TrimSpace(req.Text) == "" && req.Img == "":
		util.RespondValidationError(c, "text", "text or img is required")
		return
	}

	msg := &models.Message{
		ConversationID: req.ConversationID,
		Sender:         req.Sender,
		Text:           req.Text,
		Img:            req.Img,
	}
	conv, err := h.messages.Create(c.Request.Context(), msg)
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		util.RespondNotFound(c, "conversation")
		return
	case errors.Is(err, repository.ErrNotAMember):
		util.RespondForbidden(c, "sender is not a member of this conversation")
		return
	case err != nil:
		util.RespondInternalError(c, "failed to store message", err)
		return
	}

	h.announce(c.Request.Context(), msg, conv.Other(msg.Sender))
	c.JSON(http.StatusCreated, msg)
}

// announce is best effort; a lost notification only delays the recipient
// until their next fetch.
func (h *Handlers) announce(parent context.Context, msg *models.Message, receiverID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), publishTimeout)
	defer cancel()

	if err := h.publisher.PublishMessageCreated(ctx, broker.MessageCreated{Message: *msg, ReceiverID: receiverID}); err != nil {
		logger.Log.Warn("Failed to announce message",
			zap.String("message_id", msg.ID),
			logger.WithConversationID(msg.ConversationID),
			zap.Error(err))
	}
}

// GetMessages returns a conversation's full history in creation order.
// GET /messages/:conversationId
func (h *Handlers) GetMessages(c *gin.Context) {
	msgs, err := h.messages.ListByConversation(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		util.RespondInternalError(c, "failed to load messages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
