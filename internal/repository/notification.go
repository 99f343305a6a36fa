package repository

import (
	"context"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	// Create inserts n. When n.DedupKey matches an existing row that row is
	// refreshed (marked unread, re-dated) instead and loaded into n.
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, recipientID, id uint) error
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
}

type notificationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewNotificationRepository returns the gorm NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db, log: observability.NewRepoLogger("notifications")}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	db := r.db.WithContext(ctx)
	var err error
	if n.DedupKey == nil {
		err = db.Create(n).Error
	} else {
		now := time.Now()
		n.CreatedAt = now
		n.UpdatedAt = now
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "dedup_key"}},
				DoUpdates: clause.Assignments(map[string]any{
					"is_read":    false,
					"read_at":    nil,
					"message":    n.Message,
					"created_at": now,
					"updated_at": now,
				}),
			}).Create(n).Error; err != nil {
				return err
			}
			var stored models.Notification
			if err := tx.Where("dedup_key = ?", *n.DedupKey).First(&stored).Error; err != nil {
				return err
			}
			*n = stored
			return nil
		})
	}
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.UnreadCountKey(n.RecipientID))
	r.log.LogCreate(ctx, map[string]interface{}{"notification_id": n.ID, "type": n.Type})
	return nil
}

func (r *notificationRepository) List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	limit, offset = clampPage(limit, offset, 30, 100)
	tx := readDB(ctx, r.db).
		Preload("Actor").
		Where("recipient_id = ?", recipientID)
	if unreadOnly {
		tx = tx.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var n int64
	err := cache.Aside(ctx, cache.UnreadCountKey(recipientID), &n, cache.UnreadCountTTL, func() error {
		return r.db.WithContext(ctx).Model(&models.Notification{}).
			Where("recipient_id = ? AND is_read = ?", recipientID, false).
			Count(&n).Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]any{"is_read": true, "read_at": time.Now()})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	cache.Invalidate(ctx, cache.UnreadCountKey(recipientID))
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": time.Now()})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	cache.Invalidate(ctx, cache.UnreadCountKey(recipientID))
	return res.RowsAffected, nil
}
