package models

import "time"

// NotificationType identifies what triggered a notification.
type NotificationType string

const (
	NotificationFollow  NotificationType = "follow"
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationMention NotificationType = "mention"
	NotificationReply   NotificationType = "reply"
	NotificationReview  NotificationType = "review"
	NotificationSystem  NotificationType = "system"
)

// Notification is an in-app notification for one recipient.
// DedupKey, when set, collapses repeated events (e.g. re-follows) into one row.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notification_recipient" json:"recipient_id"`
	ActorID     uint             `gorm:"index" json:"actor_id"`
	Actor       *User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Type        NotificationType `gorm:"size:20;not null;index" json:"type"`
	TargetType  string           `gorm:"size:20" json:"target_type,omitempty"`
	TargetID    uint             `json:"target_id,omitempty"`
	Message     string           `gorm:"size:500" json:"message"`
	DedupKey    *string          `gorm:"uniqueIndex;size:120" json:"-"`
	IsRead      bool             `gorm:"not null;default:false;index:idx_notification_recipient" json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
