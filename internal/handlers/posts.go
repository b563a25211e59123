package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislav-moscow/Social/internal/models"
	"github.com/vladislav-moscow/Social/internal/repository"
	"github.com/vladislav-moscow/Social/internal/util"
)

const defaultTimelineLimit = 100

type createPostRequest struct {
	UserID string `json:"userId"`
	Desc   string `json:"desc"`
	Img    string `json:"img"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

// CreatePost POST /posts
func (h *Handlers) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	if req.UserID == "" {
		util.RespondValidationError(c, "userId", "userId is required")
		return
	}
	if strings.TrimSpace(req.Desc) == "" && req.Img == "" {
		util.RespondValidationError(c, "desc", "desc or img is required")
		return
	}

	post := &models.Post{UserID: req.UserID, Desc: req.Desc, Img: req.Img}
	if err := h.posts.Create(c.Request.Context(), post); err != nil {
		util.RespondInternalError(c, "failed to create post", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// GetTimeline GET /posts/timeline/:userId?limit=N
func (h *Handlers) GetTimeline(c *gin.Context) {
	limit := defaultTimelineLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			util.RespondValidationError(c, "limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	posts, err := h.posts.Timeline(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		util.RespondInternalError(c, "failed to load timeline", err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// ToggleLike PUT /posts/:id/like
func (h *Handlers) ToggleLike(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		util.RespondValidationError(c, "userId", "userId is required")
		return
	}

	liked, err := h.posts.ToggleLike(c.Request.Context(), c.Param("id"), req.UserID)
	if errors.Is(err, repository.ErrPostNotFound) {
		util.RespondNotFound(c, "post")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to toggle like", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}
