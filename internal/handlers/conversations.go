package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/repository"
	"github.com/vladislav-moscow/Social/internal/util"
)

type createConversationRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// CreateConversation returns the pair's conversation, creating it on first use.
// POST /conversations
func (h *Handlers) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	req.SenderID = strings.TrimSpace(req.SenderID)
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)

	switch {
	case req.SenderID == "":
		util.RespondValidationError(c, "senderId", "senderId is required")
		return
	case req.ReceiverID == "":
		util.RespondValidationError(c, "receiverId", "receiverId is required")
		return
	case req.SenderID == req.ReceiverID:
		util.RespondValidationError(c, "receiverId", "cannot start a conversation with yourself")
		return
	}

	conv, created, err := h.conversations.FindOrCreate(c.Request.Context(), req.SenderID, req.ReceiverID)
	if err != nil {
		util.RespondInternalError(c, "failed to create conversation", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		logger.Log.Info("Conversation created",
			logger.WithConversationID(conv.ID),
			zap.Strings("members", conv.Members))
	}
	c.JSON(status, conv)
}

// GetUserConversations lists every conversation the user belongs to.
// GET /conversations/:userId
func (h *Handlers) GetUserConversations(c *gin.Context) {
	convs, err := h.conversations.ListForMember(c.Request.Context(), c.Param("userId"))
	if err != nil {
		util.RespondInternalError(c, "failed to load conversations", err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// FindConversation returns the pair's conversation or null.
// GET /conversations/find/:firstUserId/:secondUserId
func (h *Handlers) FindConversation(c *gin.Context) {
	conv, err := h.conversations.FindBetween(c.Request.Context(), c.Param("firstUserId"), c.Param("secondUserId"))
	if errors.Is(err, repository.ErrConversationNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to find conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
