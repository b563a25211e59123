package seed

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/models"
	"github.com/vladislav-moscow/Social/internal/repository"
)

// Seeder fills a development database with fake users, posts and chats.
// Users exist only as ids; the API never stores profiles.
type Seeder struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	posts         repository.PostRepository
	follows       repository.FollowRepository
	rng           *rand.Rand
}

// Result counts what a run created.
type Result struct {
	Users         []string
	Conversations int
	Messages      int
	Posts         int
	Follows       int
	Likes         int
}

// NewSeeder creates a seeder. A zero seed uses a random one.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	if seed == 0 {
		seed = rand.Int63()
	}
	_ = gofakeit.Seed(seed)
	return &Seeder{
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		posts:         repository.NewPostRepository(db),
		follows:       repository.NewFollowRepository(db),
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// SeedDev creates userCount users, each with a few posts, follows and
// conversations.
func (s *Seeder) SeedDev(ctx context.Context, userCount int) (*Result, error) {
	if userCount < 2 {
		return nil, fmt.Errorf("need at least 2 users, got %d", userCount)
	}

	res := &Result{Users: s.userIDs(userCount)}

	logger.Log.Info("Creating posts...")
	posts, err := s.seedPosts(ctx, res.Users, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to seed posts: %w", err)
	}
	res.Posts = len(posts)

	logger.Log.Info("Creating follows...")
	if res.Follows, err = s.seedFollows(ctx, res.Users, 3); err != nil {
		return nil, fmt.Errorf("failed to seed follows: %w", err)
	}

	logger.Log.Info("Creating likes...")
	if res.Likes, err = s.seedLikes(ctx, res.Users, posts); err != nil {
		return nil, fmt.Errorf("failed to seed likes: %w", err)
	}

	logger.Log.Info("Creating conversations...")
	if res.Conversations, res.Messages, err = s.seedConversations(ctx, res.Users, 2, 8); err != nil {
		return nil, fmt.Errorf("failed to seed conversations: %w", err)
	}

	logger.Log.Info("Seeding complete",
		zap.Int("users", len(res.Users)),
		zap.Int("posts", res.Posts),
		zap.Int("follows", res.Follows),
		zap.Int("likes", res.Likes),
		zap.Int("conversations", res.Conversations),
		zap.Int("messages", res.Messages))
	return res, nil
}

func (s *Seeder) userIDs(count int) []string {
	ids := make([]string, 0, count)
	for len(ids) < count {
		ids = lo.Uniq(append(ids, gofakeit.Username()))
	}
	return ids
}

func (s *Seeder) seedPosts(ctx context.Context, users []string, perUser int) ([]*models.Post, error) {
	var posts []*models.Post
	for _, u := range users {
		for i := 0; i < perUser; i++ {
			p := &models.Post{UserID: u, Desc: gofakeit.Sentence(8 + s.rng.Intn(12))}
			if err := s.posts.Create(ctx, p); err != nil {
				return nil, err
			}
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []string, perUser int) (int, error) {
	count := 0
	for _, u := range users {
		for _, target := range s.pick(users, u, perUser) {
			changed, err := s.follows.Follow(ctx, u, target)
			if err != nil {
				return count, err
			}
			if changed {
				count++
			}
		}
	}
	return count, nil
}

func (s *Seeder) seedLikes(ctx context.Context, users []string, posts []*models.Post) (int, error) {
	count := 0
	for _, p := range posts {
		for _, u := range s.pick(users, p.UserID, s.rng.Intn(4)) {
			liked, err := s.posts.ToggleLike(ctx, p.ID, u)
			if err != nil {
				return count, err
			}
			if liked {
				count++
			}
		}
	}
	return count, nil
}

func (s *Seeder) seedConversations(ctx context.Context, users []string, perUser, maxMessages int) (int, int, error) {
	convs, msgs := 0, 0
	for _, u := range users {
		for _, other := range s.pick(users, u, perUser) {
			conv, created, err := s.conversations.FindOrCreate(ctx, u, other)
			if err != nil {
				return convs, msgs, err
			}
			if !created {
				continue
			}
			convs++

			for i := 0; i < 1+s.rng.Intn(maxMessages); i++ {
				sender := conv.Members[s.rng.Intn(2)]
				msg := &models.Message{ConversationID: conv.ID, Sender: sender, Text: gofakeit.Sentence(3 + s.rng.Intn(10))}
				if _, err := s.messages.Create(ctx, msg); err != nil {
					return convs, msgs, err
				}
				msgs++
			}
		}
	}
	return convs, msgs, nil
}

// pick returns up to n distinct users other than self.
func (s *Seeder) pick(users []string, self string, n int) []string {
	others := lo.Without(users, self)
	s.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	if n > len(others) {
		n = len(others)
	}
	return others[:n]
}
