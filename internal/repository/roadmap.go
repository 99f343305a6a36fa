package repository

import (
	"context"

	"plantspack/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoadmapRepository stores roadmap items and votes.
type RoadmapRepository interface {
	List(ctx context.Context) ([]models.RoadmapItem, error)
	VotedItemIDs(ctx context.Context, userID uint) ([]uint, error)
	GetByID(ctx context.Context, id uint) (*models.RoadmapItem, error)
	Create(ctx context.Context, item *models.RoadmapItem) error
	UpdateStatus(ctx context.Context, id uint, status models.RoadmapStatus) error
	// ToggleVote adds the user's vote or removes it when already present.
	ToggleVote(ctx context.Context, itemID, userID uint) (voted bool, votes int64, err error)
}

type roadmapRepository struct {
	db *gorm.DB
}

// NewRoadmapRepository returns the gorm RoadmapRepository.
func NewRoadmapRepository(db *gorm.DB) RoadmapRepository {
	return &roadmapRepository{db: db}
}

func (r *roadmapRepository) List(ctx context.Context) ([]models.RoadmapItem, error) {
	var items []models.RoadmapItem
	err := readDB(ctx, r.db).
		Order("votes_count DESC").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *roadmapRepository) VotedItemIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.RoadmapVote{}).Where("user_id = ?", userID).Pluck("item_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *roadmapRepository) GetByID(ctx context.Context, id uint) (*models.RoadmapItem, error) {
	var item models.RoadmapItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFoundOr(err, "Roadmap item", id)
	}
	return &item, nil
}

func (r *roadmapRepository) Create(ctx context.Context, item *models.RoadmapItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roadmapRepository) UpdateStatus(ctx context.Context, id uint, status models.RoadmapStatus) error {
	res := r.db.WithContext(ctx).Model(&models.RoadmapItem{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Roadmap item", id)
	}
	return nil
}

func (r *roadmapRepository) ToggleVote(ctx context.Context, itemID, userID uint) (bool, int64, error) {
	var voted bool
	var votes int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.RoadmapItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&models.RoadmapVote{ItemID: itemID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}

		delta := 1
		voted = true
		if res.RowsAffected == 0 {
			if err := tx.Where("item_id = ? AND user_id = ?", itemID, userID).Delete(&models.RoadmapVote{}).Error; err != nil {
				return err
			}
			delta = -1
			voted = false
		}
		if err := tx.Model(&models.RoadmapItem{}).Where("id = ?", itemID).
			Update("votes_count", gorm.Expr("votes_count + ?", delta)).Error; err != nil {
			return err
		}
		return tx.Model(&models.RoadmapItem{}).Where("id = ?", itemID).Pluck("votes_count", &votes).Error
	})
	if err != nil {
		return false, 0, notFoundOr(err, "Roadmap item", itemID)
	}
	return voted, votes, nil
}
