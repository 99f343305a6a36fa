package repository

import (
	"context"
	"errors"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionRepository stores billing state and mirrors the tier onto users.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Subscription, error)
	// Upsert writes sub and sets users.tier in the same transaction.
	Upsert(ctx context.Context, sub *models.Subscription) error
}

type subscriptionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSubscriptionRepository returns the gorm SubscriptionRepository.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db, log: observability.NewRepoLogger("subscriptions")}
}

// GetByUserID returns a free, active subscription when the user has no row yet.
func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := cache.Aside(ctx, cache.SubscriptionKey(userID), &sub, cache.SubscriptionTTL, func() error {
		err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = models.Subscription{UserID: userID, Tier: models.TierFree, Status: models.SubscriptionActive}
			return nil
		}
		return err
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return UpsertSubscriptionTx(tx, sub)
	})
	if err != nil {
		r.log.LogError(ctx, err, "upsert")
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, sub.UserID)
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": sub.UserID, "tier": sub.Tier, "status": sub.Status})
	return nil
}

// UpsertSubscriptionTx writes sub inside an existing transaction.
func UpsertSubscriptionTx(tx *gorm.DB, sub *models.Subscription) error {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "status", "external_id", "current_period_end", "updated_at"}),
	}).Create(sub).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", sub.UserID).Update("tier", sub.Tier).Error
}
