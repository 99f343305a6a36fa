package repository

import (
	"context"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository stores likes and richer reactions. Target counters move
// only when an edge is actually inserted or removed.
type ReactionRepository interface {
	// React adds a reaction. With replace=false an existing reaction of any
	// type is left untouched; with replace=true its type is changed.
	React(ctx context.Context, userID uint, targetType string, targetID uint, kind models.ReactionType, replace bool) (created bool, err error)
	Remove(ctx context.Context, userID uint, targetType string, targetID uint) (removed bool, err error)
	Get(ctx context.Context, userID uint, targetType string, targetID uint) (*models.Reaction, error)
	CountByType(ctx context.Context, targetType string, targetID uint) (map[models.ReactionType]int64, error)
}

type reactionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewReactionRepository returns the gorm ReactionRepository.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db, log: observability.NewRepoLogger("reactions")}
}

func counterDelta(tx *gorm.DB, targetType string, targetID uint, delta int) error {
	switch targetType {
	case models.TargetPost:
		return tx.Model(&models.Post{}).Where("id = ?", targetID).Updates(map[string]any{
			"likes_count":      gorm.Expr("likes_count + ?", delta),
			"engagement_score": gorm.Expr("engagement_score + ?", delta),
		}).Error
	case models.TargetComment:
		return tx.Model(&models.Comment{}).Where("id = ?", targetID).
			Update("likes_count", gorm.Expr("likes_count + ?", delta)).Error
	}
	return nil
}

func (r *reactionRepository) React(ctx context.Context, userID uint, targetType string, targetID uint, kind models.ReactionType, replace bool) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Reaction{UserID: userID, TargetType: targetType, TargetID: targetID, Type: kind}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "target_type"}, {Name: "target_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			created = true
			return counterDelta(tx, targetType, targetID, 1)
		}
		if replace {
			return tx.Model(&models.Reaction{}).
				Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
				Update("type", kind).Error
		}
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "react")
		return false, models.NewInternalError(err)
	}
	if targetType == models.TargetPost {
		cache.InvalidatePost(ctx, targetID)
	}
	if created {
		r.log.LogCreate(ctx, map[string]interface{}{"user_id": userID, "target_type": targetType, "target_id": targetID})
	}
	return created, nil
}

func (r *reactionRepository) Remove(ctx context.Context, userID uint, targetType string, targetID uint) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
			Delete(&models.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return counterDelta(tx, targetType, targetID, -1)
	})
	if err != nil {
		r.log.LogError(ctx, err, "remove")
		return false, models.NewInternalError(err)
	}
	if removed {
		if targetType == models.TargetPost {
			cache.InvalidatePost(ctx, targetID)
		}
		r.log.LogDelete(ctx, map[string]interface{}{"user_id": userID, "target_type": targetType, "target_id": targetID})
	}
	return removed, nil
}

// Get returns (nil, nil) when the user has not reacted.
func (r *reactionRepository) Get(ctx context.Context, userID uint, targetType string, targetID uint) (*models.Reaction, error) {
	var rows []models.Reaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *reactionRepository) CountByType(ctx context.Context, targetType string, targetID uint) (map[models.ReactionType]int64, error) {
	var rows []struct {
		Type  models.ReactionType
		Total int64
	}
	err := readDB(ctx, r.db).Model(&models.Reaction{}).
		Select("type, COUNT(*) AS total").
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make(map[models.ReactionType]int64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}
