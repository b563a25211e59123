package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vladislav-moscow/Social/pkg/api"
	"github.com/vladislav-moscow/Social/pkg/localstore"
)

func timeline() []api.Post {
	now := time.Now()
	return []api.Post{
		{ID: "old", UserID: "bob", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", UserID: "bob", CreatedAt: now, Likes: []string{"carol"}},
	}
}

func TestFetchPostsSortsNewestFirstAndCaches(t *testing.T) {
	m := new(mockAPI)
	m.On("GetTimeline", mock.Anything, "alice").Return(timeline(), nil)
	kv := openKV(t)

	s := NewPostStore(m, kv, time.Minute)
	posts, err := s.FetchPosts(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "new", posts[0].ID)

	cached, ok := s.CachedPosts("alice")
	require.True(t, ok)
	assert.Equal(t, "new", cached[0].ID)
}

func TestToggleLikeOptimistic(t *testing.T) {
	m := new(mockAPI)
	m.On("GetTimeline", mock.Anything, "alice").Return(timeline(), nil)
	m.On("ToggleLike", mock.Anything, "new", "alice").Return(true, nil)

	s := NewPostStore(m, openKV(t), time.Minute)
	_, err := s.FetchPosts(context.Background(), "alice")
	require.NoError(t, err)

	liked, err := s.ToggleLike(context.Background(), "new", "alice")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.ElementsMatch(t, []string{"carol", "alice"}, s.Posts()[0].Likes)
	assert.Empty(t, s.Err())
}

func TestToggleLikeRollsBackOnFailure(t *testing.T) {
	m := new(mockAPI)
	m.On("GetTimeline", mock.Anything, "alice").Return(timeline(), nil)
	m.On("ToggleLike", mock.Anything, "new", "carol").Return(false, errors.New("server error"))
	kv := openKV(t)

	s := NewPostStore(m, kv, time.Minute)
	_, err := s.FetchPosts(context.Background(), "alice")
	require.NoError(t, err)

	_, err = s.ToggleLike(context.Background(), "new", "carol")
	assert.Error(t, err)
	assert.Equal(t, []string{"carol"}, s.Posts()[0].Likes)
	assert.Equal(t, "server error", s.Err())

	var cached []api.Post
	ok, err := kv.Get(localstore.UserKey("alice", localstore.KeyPosts), &cached)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"carol"}, cached[0].Likes)
}

func TestToggleLikeFollowsServerState(t *testing.T) {
	m := new(mockAPI)
	m.On("GetTimeline", mock.Anything, "alice").Return(timeline(), nil)
	// Optimistically unliked, but the server says the like now exists.
	m.On("ToggleLike", mock.Anything, "new", "carol").Return(true, nil)

	s := NewPostStore(m, openKV(t), time.Minute)
	_, err := s.FetchPosts(context.Background(), "alice")
	require.NoError(t, err)

	liked, err := s.ToggleLike(context.Background(), "new", "carol")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []string{"carol"}, s.Posts()[0].Likes)
}

func TestClearPosts(t *testing.T) {
	m := new(mockAPI)
	m.On("GetTimeline", mock.Anything, "alice").Return(timeline(), nil)

	s := NewPostStore(m, openKV(t), time.Minute)
	_, err := s.FetchPosts(context.Background(), "alice")
	require.NoError(t, err)

	require.NoError(t, s.ClearPosts("alice"))
	assert.Empty(t, s.Posts())
	_, ok := s.CachedPosts("alice")
	assert.False(t, ok)
}
