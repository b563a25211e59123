package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/vladislav-moscow/Social/internal/database"
	"github.com/vladislav-moscow/Social/internal/models"
)

type RepositoryTestSuite struct {
	suite.Suite
	db            *gorm.DB
	conversations ConversationRepository
	messages      MessageRepository
	posts         PostRepository
	follows       FollowRepository
	ctx           context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.Migrate(db))

	s.db = db
	s.conversations = NewConversationRepository(db)
	s.messages = NewMessageRepository(db)
	s.posts = NewPostRepository(db)
	s.follows = NewFollowRepository(db)
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	_ = database.Close(s.db)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) TestFindOrCreateIsIdempotent() {
	first, created, err := s.conversations.FindOrCreate(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.True(created)
	s.Equal([]string{"alice", "bob"}, first.Members)

	second, created, err := s.conversations.FindOrCreate(s.ctx, "bob", "alice")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)

	var count int64
	s.db.Model(&models.Conversation{}).Count(&count)
	s.EqualValues(1, count)
}

func (s *RepositoryTestSuite) TestFindOrCreateKeepsColonIDsApart() {
	first, created, err := s.conversations.FindOrCreate(s.ctx, "a", "b:c")
	s.Require().NoError(err)
	s.True(created)

	second, created, err := s.conversations.FindOrCreate(s.ctx, "a:b", "c")
	s.Require().NoError(err)
	s.True(created)
	s.NotEqual(first.ID, second.ID)
	s.Equal([]string{"a:b", "c"}, second.Members)

	found, err := s.conversations.FindBetween(s.ctx, "c", "a:b")
	s.Require().NoError(err)
	s.Equal(second.ID, found.ID)
}

func (s *RepositoryTestSuite) TestFindOrCreateConcurrent() {
	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 0 {
				a, b = b, a
			}
			conv, _, err := s.conversations.FindOrCreate(s.ctx, a, b)
			if err == nil {
				ids <- conv.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	s.Len(seen, 1)
}

func (s *RepositoryTestSuite) TestFindOrCreateRejectsBadPairs() {
	_, _, err := s.conversations.FindOrCreate(s.ctx, "alice", "alice")
	s.ErrorIs(err, ErrInvalidInput)
	_, _, err = s.conversations.FindOrCreate(s.ctx, "", "bob")
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *RepositoryTestSuite) TestFindBetweenMissing() {
	_, err := s.conversations.FindBetween(s.ctx, "x", "y")
	s.ErrorIs(err, ErrConversationNotFound)
}

func (s *RepositoryTestSuite) TestListForMember() {
	_, _, _ = s.conversations.FindOrCreate(s.ctx, "alice", "bob")
	_, _, _ = s.conversations.FindOrCreate(s.ctx, "carol", "alice")
	_, _, _ = s.conversations.FindOrCreate(s.ctx, "bob", "carol")

	convs, err := s.conversations.ListForMember(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(convs, 2)
	for _, c := range convs {
		s.True(c.HasMember("alice"))
		s.Len(c.Members, 2)
	}

	none, err := s.conversations.ListForMember(s.ctx, "nobody")
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *RepositoryTestSuite) TestMessagesOrderedByCreation() {
	conv, _, err := s.conversations.FindOrCreate(s.ctx, "alice", "bob")
	s.Require().NoError(err)

	texts := []string{gofakeit.Sentence(4), gofakeit.Sentence(5), gofakeit.Sentence(6)}
	for i, text := range texts {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		got, err := s.messages.Create(s.ctx, &models.Message{
			ConversationID: conv.ID,
			Sender:         sender,
			Text:           text,
			CreatedAt:      time.Now().Add(time.Duration(i) * time.Millisecond),
		})
		s.Require().NoError(err)
		s.Equal(conv.ID, got.ID)
	}

	msgs, err := s.messages.ListByConversation(s.ctx, conv.ID)
	s.Require().NoError(err)
	s.Require().Len(msgs, 3)
	for i, m := range msgs {
		s.Equal(texts[i], m.Text)
		s.NotEmpty(m.ID)
	}
}

func (s *RepositoryTestSuite) TestCreateMessageChecksConversation() {
	_, err := s.messages.Create(s.ctx, &models.Message{ConversationID: "missing", Sender: "alice", Text: "hi"})
	s.ErrorIs(err, ErrConversationNotFound)

	conv, _, _ := s.conversations.FindOrCreate(s.ctx, "alice", "bob")
	_, err = s.messages.Create(s.ctx, &models.Message{ConversationID: conv.ID, Sender: "mallory", Text: "hi"})
	s.ErrorIs(err, ErrNotAMember)

	_, err = s.messages.Create(s.ctx, &models.Message{Sender: "alice"})
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *RepositoryTestSuite) TestToggleLike() {
	post := &models.Post{UserID: "alice", Desc: gofakeit.Sentence(8)}
	s.Require().NoError(s.posts.Create(s.ctx, post))

	liked, err := s.posts.ToggleLike(s.ctx, post.ID, "bob")
	s.Require().NoError(err)
	s.True(liked)

	got, err := s.posts.Get(s.ctx, post.ID)
	s.Require().NoError(err)
	s.Equal([]string{"bob"}, got.Likes)

	liked, err = s.posts.ToggleLike(s.ctx, post.ID, "bob")
	s.Require().NoError(err)
	s.False(liked)

	got, _ = s.posts.Get(s.ctx, post.ID)
	s.Empty(got.Likes)

	_, err = s.posts.ToggleLike(s.ctx, "missing", "bob")
	s.ErrorIs(err, ErrPostNotFound)
}

func (s *RepositoryTestSuite) TestTimelineIncludesFollowing() {
	base := time.Now()
	mk := func(user string, offset time.Duration) *models.Post {
		p := &models.Post{UserID: user, Desc: gofakeit.Sentence(3), CreatedAt: base.Add(offset)}
		s.Require().NoError(s.posts.Create(s.ctx, p))
		return p
	}
	own := mk("alice", 0)
	followed := mk("bob", time.Second)
	mk("carol", 2*time.Second)

	created, err := s.follows.Follow(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.True(created)

	posts, err := s.posts.Timeline(s.ctx, "alice", 0)
	s.Require().NoError(err)
	s.Require().Len(posts, 2)
	s.Equal(followed.ID, posts[0].ID)
	s.Equal(own.ID, posts[1].ID)
	s.NotNil(posts[0].Likes)
}

func (s *RepositoryTestSuite) TestFollowIdempotent() {
	created, err := s.follows.Follow(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.True(created)

	created, err = s.follows.Follow(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.False(created)

	following, _ := s.follows.Following(s.ctx, "alice")
	s.Equal([]string{"bob"}, following)
	followers, _ := s.follows.Followers(s.ctx, "bob")
	s.Equal([]string{"alice"}, followers)

	removed, err := s.follows.Unfollow(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.True(removed)
	removed, err = s.follows.Unfollow(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.False(removed)

	_, err = s.follows.Follow(s.ctx, "alice", "alice")
	s.ErrorIs(err, ErrSelfFollow)
}
