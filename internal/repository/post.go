package repository

import (
	"context"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
)

// Feed orderings understood by ListFeed.
const (
	SortRecent    = "recent"
	SortPopular   = "popular"
	SortFollowing = "following"
)

// FeedQuery selects a page of posts for one viewer.
type FeedQuery struct {
	ViewerID uint
	Sort     string
	Limit    int
	Offset   int
	// Since restricts the page to posts newer than this instant.
	Since *time.Time
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	ListFeed(ctx context.Context, q FeedQuery) ([]*models.Post, error)
	ListByUser(ctx context.Context, authorID, viewerID uint, limit, offset int) ([]*models.Post, error)
	ListByIDs(ctx context.Context, ids []uint, viewerID uint) ([]*models.Post, error)
	Search(ctx context.Context, query string, viewerID uint, limit, offset int) ([]*models.Post, error)
	MarkLiked(ctx context.Context, viewerID uint, posts []*models.Post) error
	Count(ctx context.Context) (int64, error)
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"post_id": post.ID, "user_id": post.UserID})
	return nil
}

// GetByID loads a post with its author. Viewer-specific fields are left unset.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := readDB(ctx, r.db).Preload("User").First(&post, id).Error; err != nil {
			return notFoundOr(err, "Post", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("content", "image_urls", "video_url", "visibility", "place_id").
		Updates(post).Error
	if err != nil {
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	r.log.LogUpdate(ctx, map[string]interface{}{"post_id": post.ID})
	return nil
}

// Delete soft-deletes the post.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	r.log.LogDelete(ctx, map[string]interface{}{"post_id": id})
	return nil
}

// visibleTo restricts posts to what viewerID may see: public posts, their own
// posts and followers-only posts of people they follow, minus anyone on
// either side of a block.
func visibleTo(viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewerID == 0 {
			return db.Where("posts.visibility = ?", models.VisibilityPublic)
		}
		return db.
			Where("posts.visibility = ? OR posts.user_id = ? OR posts.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)",
				models.VisibilityPublic, viewerID, viewerID).
			Where("posts.user_id NOT IN (SELECT blocked_id FROM user_blocks WHERE blocker_id = ?)", viewerID).
			Where("posts.user_id NOT IN (SELECT blocker_id FROM user_blocks WHERE blocked_id = ?)", viewerID)
	}
}

func notMutedBy(viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewerID == 0 {
			return db
		}
		return db.Where("posts.user_id NOT IN (SELECT muted_id FROM user_mutes WHERE muter_id = ?)", viewerID)
	}
}

func (r *postRepository) ListFeed(ctx context.Context, q FeedQuery) ([]*models.Post, error) {
	limit, offset := clampPage(q.Limit, q.Offset, 20, 200)
	tx := readDB(ctx, r.db).
		Preload("User").
		Scopes(visibleTo(q.ViewerID), notMutedBy(q.ViewerID))

	if q.Since != nil {
		tx = tx.Where("posts.created_at >= ?", *q.Since)
	}

	switch q.Sort {
	case SortPopular:
		tx = tx.Order("posts.engagement_score DESC").Order("posts.created_at DESC")
	case SortFollowing:
		tx = tx.Where("posts.user_id = ? OR posts.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)", q.ViewerID, q.ViewerID).
			Order("posts.created_at DESC")
	default:
		tx = tx.Order("posts.created_at DESC")
	}

	var posts []*models.Post
	if err := tx.Order("posts.id DESC").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		r.log.LogError(ctx, err, "list_feed")
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByUser(ctx context.Context, authorID, viewerID uint, limit, offset int) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset, 20, 100)
	var posts []*models.Post
	err := readDB(ctx, r.db).
		Preload("User").
		Scopes(visibleTo(viewerID)).
		Where("posts.user_id = ?", authorID).
		Order("posts.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListByIDs returns the visible subset of ids, newest first.
func (r *postRepository) ListByIDs(ctx context.Context, ids []uint, viewerID uint) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}
	var posts []*models.Post
	err := readDB(ctx, r.db).
		Preload("User").
		Scopes(visibleTo(viewerID)).
		Where("posts.id IN ?", ids).
		Order("posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Search(ctx context.Context, query string, viewerID uint, limit, offset int) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset, 20, 50)
	var posts []*models.Post
	err := readDB(ctx, r.db).
		Preload("User").
		Scopes(visibleTo(viewerID), notMutedBy(viewerID)).
		Where("LOWER(posts.content) LIKE ? ESCAPE '\\'", likePattern(query)).
		Order("posts.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// MarkLiked sets Post.Liked for the posts viewerID has reacted to.
func (r *postRepository) MarkLiked(ctx context.Context, viewerID uint, posts []*models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var liked []uint
	err := readDB(ctx, r.db).Model(&models.Reaction{}).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", viewerID, models.TargetPost, ids).
		Pluck("target_id", &liked).Error
	if err != nil {
		return models.NewInternalError(err)
	}

	set := make(map[uint]bool, len(liked))
	for _, id := range liked {
		set[id] = true
	}
	for _, p := range posts {
		p.Liked = set[p.ID]
	}
	return nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(ctx, r.db).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
