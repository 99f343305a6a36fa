package service

import (
	"context"

	"plantspack/internal/models"
	"plantspack/internal/notifications"
	"plantspack/internal/repository"
)

// FollowService manages the social graph.
type FollowService struct {
	follows       repository.FollowRepository
	users         repository.UserRepository
	moderation    repository.ModerationRepository
	notifications *NotificationService
	publisher     EventPublisher
}

func NewFollowService(
	follows repository.FollowRepository,
	users repository.UserRepository,
	moderation repository.ModerationRepository,
	notifications *NotificationService,
	publisher EventPublisher,
) *FollowService {
	return &FollowService{
		follows:       follows,
		users:         users,
		moderation:    moderation,
		notifications: notifications,
		publisher:     publisherOrNoop(publisher),
	}
}

// FollowResult reports whether the call changed the graph.
type FollowResult struct {
	Following bool `json:"following"`
	Changed   bool `json:"changed"`
}

// Follow is idempotent. A new edge produces one follow notification per
// (follower, followed) pair; following again after an unfollow refreshes it.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) (*FollowResult, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.IsAnonymized() {
		return nil, models.NewNotFoundError("User", targetID)
	}
	blocked, err := s.moderation.IsBlockedEitherWay(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewForbiddenError("You cannot follow this user")
	}

	created, err := s.follows.Follow(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if created {
		follower, err := s.users.GetByID(ctx, followerID)
		if err == nil {
			s.notifications.NotifyBestEffort(ctx, NotifyInput{
				RecipientID: targetID,
				ActorID:     followerID,
				Type:        models.NotificationFollow,
				TargetType:  models.ReportTargetUser,
				TargetID:    followerID,
				Message:     follower.Username + " started following you",
				DedupKey:    followDedupKey(followerID, targetID),
			})
		}
		s.publisher.PublishUser(ctx, targetID, notifications.EventFollowCreated, map[string]uint{
			"follower_id": followerID,
		})
	}
	return &FollowResult{Following: true, Changed: created}, nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) (*FollowResult, error) {
	removed, err := s.follows.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	return &FollowResult{Following: false, Changed: removed}, nil
}

func (s *FollowService) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.follows.Followers(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

func (s *FollowService) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.follows.Following(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

func publicUsers(users []models.User) []models.User {
	out := make([]models.User, len(users))
	for i, u := range users {
		out[i] = u.PublicView()
	}
	return out
}
