package repository

import (
	"context"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID, viewerID uint, limit, offset int) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, comment *models.Comment) error
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func postCommentDelta(tx *gorm.DB, postID uint, delta int) error {
	return tx.Model(&models.Post{}).Where("id = ?", postID).Updates(map[string]any{
		"comments_count":   gorm.Expr("comments_count + ?", delta),
		"engagement_score": gorm.Expr("engagement_score + ?", delta),
	}).Error
}

// Create inserts the comment and bumps the post's counters in one transaction.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return postCommentDelta(tx, comment.PostID, 1)
	})
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, comment.PostID)
	r.log.LogCreate(ctx, map[string]interface{}{"comment_id": comment.ID, "post_id": comment.PostID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

// ListByPost returns comments oldest first, hiding authors blocked by or
// blocking the viewer.
func (r *commentRepository) ListByPost(ctx context.Context, postID, viewerID uint, limit, offset int) ([]*models.Comment, error) {
	limit, offset = clampPage(limit, offset, 50, 200)
	tx := readDB(ctx, r.db).
		Preload("User").
		Where("post_id = ?", postID)
	if viewerID != 0 {
		tx = tx.
			Where("user_id NOT IN (SELECT blocked_id FROM user_blocks WHERE blocker_id = ?)", viewerID).
			Where("user_id NOT IN (SELECT blocker_id FROM user_blocks WHERE blocked_id = ?)", viewerID)
	}

	var comments []*models.Comment
	if err := tx.Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Model(comment).Update("content", comment.Content).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"comment_id": comment.ID})
	return nil
}

// Delete soft-deletes the comment and decrements the post's counters.
func (r *commentRepository) Delete(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Comment{}, comment.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return postCommentDelta(tx, comment.PostID, -1)
	})
	if err != nil {
		return notFoundOr(err, "Comment", comment.ID)
	}
	cache.InvalidatePost(ctx, comment.PostID)
	r.log.LogDelete(ctx, map[string]interface{}{"comment_id": comment.ID})
	return nil
}
