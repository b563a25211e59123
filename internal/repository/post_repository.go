package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vladislav-moscow/Social/internal/models"
)

// PostRepository stores posts and their likes.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Get(ctx context.Context, postID string) (*models.Post, error)
	// Timeline returns userID's posts and those of everyone they follow, newest first.
	Timeline(ctx context.Context, userID string, limit int) ([]*models.Post, error)
	// ToggleLike flips userID's like on the post and reports the new state.
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, err error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post == nil || post.UserID == "" {
		return ErrInvalidInput
	}
	defer observe("insert", "posts", time.Now())

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	post.Likes = []string{}
	return nil
}

func (r *postRepository) Get(ctx context.Context, postID string) (*models.Post, error) {
	defer observe("select", "posts", time.Now())

	var post models.Post
	err := r.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLikes(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Timeline(ctx context.Context, userID string, limit int) ([]*models.Post, error) {
	defer observe("select", "posts", time.Now())

	var following []string
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &following).Error; err != nil {
		return nil, err
	}
	authors := lo.Uniq(append([]string{userID}, following...))

	q := r.db.WithContext(ctx).
		Where("user_id IN ?", authors).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	posts := []*models.Post{}
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	if err := r.loadLikes(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	if postID == "" || userID == "" {
		return false, ErrInvalidInput
	}
	defer observe("update", "post_likes", time.Now())

	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrPostNotFound
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{PostID: postID, UserID: userID}).Error
	})
	return liked, err
}

func (r *postRepository) loadLikes(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := lo.Map(posts, func(p *models.Post, _ int) string { return p.ID })

	var likes []models.PostLike
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", ids).
		Order("created_at ASC").
		Find(&likes).Error; err != nil {
		return err
	}
	byPost := lo.GroupBy(likes, func(l models.PostLike) string { return l.PostID })
	for _, p := range posts {
		p.Likes = lo.Map(byPost[p.ID], func(l models.PostLike, _ int) string { return l.UserID })
	}
	return nil
}
