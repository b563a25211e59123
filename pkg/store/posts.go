package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/vladislav-moscow/Social/pkg/api"
	"github.com/vladislav-moscow/Social/pkg/localstore"
	"github.com/vladislav-moscow/Social/pkg/logger"
)

// PostStore caches a user's timeline and applies likes optimistically.
type PostStore struct {
	api PostAPI
	kv  KV
	ttl time.Duration

	mu    sync.RWMutex
	owner string
	posts []api.Post
	err   string
}

// NewPostStore creates a store. A zero ttl uses DefaultTTL.
func NewPostStore(client PostAPI, kv KV, ttl time.Duration) *PostStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostStore{api: client, kv: kv, ttl: ttl}
}

// FetchPosts loads userID's timeline newest first and caches it.
func (s *PostStore) FetchPosts(ctx context.Context, userID string) ([]api.Post, error) {
	posts, err := s.api.GetTimeline(ctx, userID)
	if err != nil {
		s.record(err)
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	s.mu.Lock()
	s.owner = userID
	s.posts = posts
	s.err = ""
	s.mu.Unlock()

	s.persist(userID, posts)
	return clonePosts(posts), nil
}

// CachedPosts returns the durable copy of userID's timeline if still fresh.
func (s *PostStore) CachedPosts(userID string) ([]api.Post, bool) {
	var posts []api.Post
	ok, err := s.kv.Get(localstore.UserKey(userID, localstore.KeyPosts), &posts)
	if err != nil || !ok {
		return nil, false
	}
	s.mu.Lock()
	s.owner = userID
	s.posts = posts
	s.mu.Unlock()
	return clonePosts(posts), true
}

// ToggleLike flips userID's like on postID locally, then confirms with the
// server. A failed request restores the previous likes.
func (s *PostStore) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	i := s.indexLocked(postID)
	var previous []string
	optimistic := false
	if i >= 0 {
		previous = append([]string(nil), s.posts[i].Likes...)
		optimistic = !lo.Contains(previous, userID)
		s.posts[i].Likes = setLike(previous, userID, optimistic)
	}
	owner, snapshot := s.owner, clonePosts(s.posts)
	s.mu.Unlock()

	if i >= 0 {
		s.persist(owner, snapshot)
	}

	liked, err := s.api.ToggleLike(ctx, postID, userID)
	if err != nil {
		s.mu.Lock()
		if j := s.indexLocked(postID); j >= 0 && i >= 0 {
			s.posts[j].Likes = previous
		}
		s.err = err.Error()
		owner, snapshot = s.owner, clonePosts(s.posts)
		s.mu.Unlock()

		logger.Error("Like failed, rolled back", "post_id", postID, "error", err)
		if i >= 0 {
			s.persist(owner, snapshot)
		}
		return false, err
	}

	if i >= 0 && liked != optimistic {
		// The server saw a different starting state; follow it.
		s.mu.Lock()
		if j := s.indexLocked(postID); j >= 0 {
			s.posts[j].Likes = setLike(s.posts[j].Likes, userID, liked)
		}
		owner, snapshot = s.owner, clonePosts(s.posts)
		s.mu.Unlock()
		s.persist(owner, snapshot)
	}

	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
	return liked, nil
}

// ClearPosts forgets userID's cached timeline.
func (s *PostStore) ClearPosts(userID string) error {
	s.mu.Lock()
	if s.owner == userID {
		s.owner = ""
		s.posts = nil
		s.err = ""
	}
	s.mu.Unlock()
	return s.kv.Delete(localstore.UserKey(userID, localstore.KeyPosts))
}

// Posts returns a copy of the in-memory timeline.
func (s *PostStore) Posts() []api.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.posts)
}

// Err returns the last recorded error message.
func (s *PostStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *PostStore) indexLocked(postID string) int {
	_, i, ok := lo.FindIndexOf(s.posts, func(p api.Post) bool { return p.ID == postID })
	if !ok {
		return -1
	}
	return i
}

func (s *PostStore) persist(userID string, posts []api.Post) {
	if userID == "" {
		return
	}
	if err := s.kv.Set(localstore.UserKey(userID, localstore.KeyPosts), posts, s.ttl); err != nil {
		logger.Warn("Caching posts failed", "user_id", userID, "error", err)
	}
}

func (s *PostStore) record(err error) {
	logger.Error("Post request failed", "error", err)
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
}

func setLike(likes []string, userID string, liked bool) []string {
	out := lo.Without(likes, userID)
	if liked {
		out = append(out, userID)
	}
	return out
}

func clonePosts(posts []api.Post) []api.Post {
	if posts == nil {
		return nil
	}
	out := make([]api.Post, len(posts))
	for i, p := range posts {
		p.Likes = append([]string(nil), p.Likes...)
		out[i] = p
	}
	return out
}
