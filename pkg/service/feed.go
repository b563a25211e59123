package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/vladislav-moscow/Social/pkg/api"
	clierrors "github.com/vladislav-moscow/Social/pkg/errors"
	"github.com/vladislav-moscow/Social/pkg/formatter"
	"github.com/vladislav-moscow/Social/pkg/logger"
	"github.com/vladislav-moscow/Social/pkg/store"
)

// Feed prints the user's timeline, from the local copy unless refresh is set.
func (s *ChatService) Feed(ctx context.Context, refresh bool) error {
	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	posts, ok := []api.Post(nil), false
	if !refresh {
		posts, ok = s.posts.CachedPosts(userID)
	}
	if !ok {
		if posts, err = s.posts.FetchPosts(ctx, userID); err != nil {
			return err
		}
	}

	if len(posts) == 0 {
		s.printf(formatter.Info, "Your timeline is empty. Follow someone with 'chat follow <userId>'\n")
		return nil
	}
	rows := lo.Map(posts, func(p api.Post, _ int) []string {
		liked := ""
		if lo.Contains(p.Likes, userID) {
			liked = "liked"
		}
		desc := p.Desc
		if p.Img != "" {
			desc = strings.TrimSpace(desc + " [image " + p.Img + "]")
		}
		return []string{p.ID, p.UserID, formatter.Truncate(desc, 60), fmt.Sprint(len(p.Likes)), liked}
	})

	s.printMu.Lock()
	defer s.printMu.Unlock()
	formatter.FprintTable(s.out, []string{"ID", "AUTHOR", "POST", "LIKES", ""}, rows)
	return nil
}

// Like toggles the user's like on postID.
func (s *ChatService) Like(ctx context.Context, postID string) (bool, error) {
	userID, err := s.currentUser()
	if err != nil {
		return false, err
	}
	if postID == "" {
		return false, clierrors.ValidationError("postId", "must not be empty")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Load the local timeline so the toggle applies to it optimistically.
	if len(s.posts.Posts()) == 0 {
		s.posts.CachedPosts(userID)
	}
	liked, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return false, err
	}
	if liked {
		s.printf(formatter.Success, "Liked %s\n", postID)
	} else {
		s.printf(formatter.Success, "Unliked %s\n", postID)
	}
	return liked, nil
}

// Follow starts following targetID.
func (s *ChatService) Follow(ctx context.Context, targetID string) error {
	return s.setFollow(ctx, targetID, true)
}

// Unfollow stops following targetID.
func (s *ChatService) Unfollow(ctx context.Context, targetID string) error {
	return s.setFollow(ctx, targetID, false)
}

func (s *ChatService) setFollow(ctx context.Context, targetID string, follow bool) error {
	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	if targetID == "" {
		return clierrors.ValidationError("userId", "must not be empty")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res *api.FollowResult
	if follow {
		res, err = s.api.Follow(ctx, targetID, userID)
	} else {
		res, err = s.api.Unfollow(ctx, targetID, userID)
	}
	if err != nil {
		return err
	}

	if res.Changed {
		// The timeline depends on who is followed.
		if err := s.posts.ClearPosts(userID); err != nil {
			logger.Warn("Dropping cached timeline failed", "error", err)
		}
	}

	switch {
	case res.Changed && res.Following:
		s.printf(formatter.Success, "Now following %s\n", targetID)
	case res.Changed:
		s.printf(formatter.Success, "Unfollowed %s\n", targetID)
	case res.Following:
		s.printf(formatter.Info, "Already following %s\n", targetID)
	default:
		s.printf(formatter.Info, "Not following %s\n", targetID)
	}
	return nil
}

// Post publishes a status update, uploading imagePath first when set.
func (s *ChatService) Post(ctx context.Context, text, imagePath string) (*api.Post, error) {
	userID, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" && imagePath == "" {
		return nil, clierrors.ValidationError("desc", "post is empty")
	}
	if err := checkFile(imagePath); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req := api.CreatePostRequest{UserID: userID, Desc: text}
	if imagePath != "" {
		res, err := s.api.UploadImage(ctx, imagePath, store.UploadName(imagePath))
		if err != nil {
			return nil, err
		}
		req.Img = res.Name
	}

	post, err := s.api.CreatePost(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.posts.ClearPosts(userID); err != nil {
		logger.Warn("Dropping cached timeline failed", "error", err)
	}
	s.printf(formatter.Success, "Posted %s\n", post.ID)
	return post, nil
}
