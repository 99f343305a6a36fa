package service

import (
	"context"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/validation"
)

const (
	defaultTrendingDays = 7
	maxTrendingDays     = 90
)

type HashtagService struct {
	hashtags repository.HashtagRepository
	posts    *PostService
	now      func() time.Time
}

func NewHashtagService(hashtags repository.HashtagRepository, posts *PostService) *HashtagService {
	return &HashtagService{hashtags: hashtags, posts: posts, now: time.Now}
}

// Trending returns the most used tags of the last days.
func (s *HashtagService) Trending(ctx context.Context, days, limit int) ([]models.TrendingHashtag, error) {
	if days <= 0 {
		days = defaultTrendingDays
	}
	if days > maxTrendingDays {
		days = maxTrendingDays
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var tags []models.TrendingHashtag
	err := cache.Aside(ctx, cache.TrendingKey(days), &tags, cache.TrendingTTL, func() error {
		var err error
		tags, err = s.hashtags.Trending(ctx, s.now().AddDate(0, 0, -days), 50)
		return err
	})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.TrendingHashtag{}
	}
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

// PostsByTag lists visible posts carrying a tag, newest first.
func (s *HashtagService) PostsByTag(ctx context.Context, rawTag string, viewerID uint, limit, offset int) ([]*models.Post, error) {
	tag, err := validation.NormalizeHashtag(rawTag)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	ids, err := s.hashtags.PostIDsByTag(ctx, tag, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}
	posts, err := s.posts.posts.ListByIDs(ctx, ids, viewerID)
	if err != nil {
		return nil, err
	}
	if err := s.posts.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}
