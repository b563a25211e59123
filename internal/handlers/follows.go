package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislav-moscow/Social/internal/repository"
	"github.com/vladislav-moscow/Social/internal/util"
)

// FollowUser makes the body's userId follow :id.
// PUT /users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	h.setFollow(c, true)
}

// UnfollowUser PUT /users/:id/unfollow
func (h *Handlers) UnfollowUser(c *gin.Context) {
	h.setFollow(c, false)
}

func (h *Handlers) setFollow(c *gin.Context, follow bool) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		util.RespondValidationError(c, "userId", "userId is required")
		return
	}
	target := c.Param("id")

	var changed bool
	var err error
	if follow {
		changed, err = h.follows.Follow(c.Request.Context(), req.UserID, target)
	} else {
		changed, err = h.follows.Unfollow(c.Request.Context(), req.UserID, target)
	}
	if errors.Is(err, repository.ErrSelfFollow) {
		util.RespondForbidden(c, "you cannot follow yourself")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to update follow", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"following": follow, "changed": changed})
}

// GetFollowing GET /users/:id/following
func (h *Handlers) GetFollowing(c *gin.Context) {
	ids, err := h.follows.Following(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondInternalError(c, "failed to load following", err)
		return
	}
	c.JSON(http.StatusOK, ids)
}
