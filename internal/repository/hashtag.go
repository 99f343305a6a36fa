package repository

import (
	"context"
	"time"

	"plantspack/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HashtagRepository links posts to normalized tags.
type HashtagRepository interface {
	// LinkPost replaces the post's tag set with tags.
	LinkPost(ctx context.Context, postID uint, tags []string) error
	TagsForPosts(ctx context.Context, postIDs []uint) (map[uint][]string, error)
	Trending(ctx context.Context, since time.Time, limit int) ([]models.TrendingHashtag, error)
	PostIDsByTag(ctx context.Context, tag string, limit, offset int) ([]uint, error)
}

type hashtagRepository struct {
	db *gorm.DB
}

// NewHashtagRepository returns the gorm HashtagRepository.
func NewHashtagRepository(db *gorm.DB) HashtagRepository {
	return &hashtagRepository{db: db}
}

func (r *hashtagRepository) LinkPost(ctx context.Context, postID uint, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostHashtag{}).Error; err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}

		rows := make([]models.Hashtag, len(tags))
		for i, t := range tags {
			rows[i] = models.Hashtag{Tag: t}
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tag"}},
			DoNothing: true,
		}).Create(&rows).Error; err != nil {
			return err
		}

		var ids []uint
		if err := tx.Model(&models.Hashtag{}).Where("tag IN ?", tags).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		links := make([]models.PostHashtag, len(ids))
		for i, id := range ids {
			links[i] = models.PostHashtag{PostID: postID, HashtagID: id}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *hashtagRepository) TagsForPosts(ctx context.Context, postIDs []uint) (map[uint][]string, error) {
	out := make(map[uint][]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PostID uint
		Tag    string
	}
	err := readDB(ctx, r.db).
		Table("post_hashtags").
		Select("post_hashtags.post_id, hashtags.tag").
		Joins("JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
		Where("post_hashtags.post_id IN ?", postIDs).
		Order("hashtags.tag ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.PostID] = append(out[row.PostID], row.Tag)
	}
	return out, nil
}

func (r *hashtagRepository) Trending(ctx context.Context, since time.Time, limit int) ([]models.TrendingHashtag, error) {
	limit, _ = clampPage(limit, 0, 10, 50)
	var out []models.TrendingHashtag
	err := readDB(ctx, r.db).
		Table("post_hashtags").
		Select("hashtags.tag AS tag, COUNT(*) AS post_count").
		Joins("JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
		Joins("JOIN posts ON posts.id = post_hashtags.post_id AND posts.deleted_at IS NULL").
		Where("post_hashtags.created_at >= ?", since).
		Group("hashtags.tag").
		Order("post_count DESC").
		Order("tag ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *hashtagRepository) PostIDsByTag(ctx context.Context, tag string, limit, offset int) ([]uint, error) {
	limit, offset = clampPage(limit, offset, 20, 100)
	var ids []uint
	err := readDB(ctx, r.db).
		Table("post_hashtags").
		Joins("JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
		Where("hashtags.tag = ?", tag).
		Order("post_hashtags.created_at DESC").
		Limit(limit).
		Offset(offset).
		Pluck("post_hashtags.post_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
