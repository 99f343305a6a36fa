package service

import (
	"context"
	"fmt"

	"plantspack/internal/models"
	"plantspack/internal/notifications"
	"plantspack/internal/observability"
	"plantspack/internal/repository"
)

// NotifyInput describes one notification to deliver.
type NotifyInput struct {
	RecipientID uint
	ActorID     uint
	Type        models.NotificationType
	TargetType  string
	TargetID    uint
	Message     string
	// DedupKey collapses repeats of the same event into one row.
	DedupKey string
}

// NotificationService creates notifications and pushes them to the recipient.
type NotificationService struct {
	repo       repository.NotificationRepository
	moderation repository.ModerationRepository
	publisher  EventPublisher
}

func NewNotificationService(
	repo repository.NotificationRepository,
	moderation repository.ModerationRepository,
	publisher EventPublisher,
) *NotificationService {
	return &NotificationService{
		repo:       repo,
		moderation: moderation,
		publisher:  publisherOrNoop(publisher),
	}
}

// Notify stores the notification and publishes it. Self-notifications and
// notifications between blocked users are dropped silently.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if in.RecipientID == 0 || in.RecipientID == in.ActorID {
		return nil, nil
	}
	if in.ActorID != 0 {
		blocked, err := s.moderation.IsBlockedEitherWay(ctx, in.RecipientID, in.ActorID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, nil
		}
	}

	n := &models.Notification{
		RecipientID: in.RecipientID,
		ActorID:     in.ActorID,
		Type:        in.Type,
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		Message:     truncate(in.Message, 480),
	}
	if in.DedupKey != "" {
		key := in.DedupKey
		n.DedupKey = &key
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.publisher.PublishUser(ctx, in.RecipientID, notifications.EventNotificationCreated, n)
	return n, nil
}

// NotifyBestEffort is Notify for side effects that must not fail the caller.
func (s *NotificationService) NotifyBestEffort(ctx context.Context, in NotifyInput) {
	if _, err := s.Notify(ctx, in); err != nil {
		observability.LogAsyncOperationError(ctx, "notify", err, map[string]interface{}{
			"type":         in.Type,
			"recipient_id": in.RecipientID,
		})
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.repo.List(ctx, userID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func followDedupKey(actorID, recipientID uint) string {
	return fmt.Sprintf("follow:%d:%d", actorID, recipientID)
}

func reactionDedupKey(actorID uint, targetType string, targetID uint) string {
	return fmt.Sprintf("like:%d:%s:%d", actorID, targetType, targetID)
}
