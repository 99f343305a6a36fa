package service

import (
	"context"
	"strings"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/notifications"
	"plantspack/internal/repository"
	"plantspack/internal/validation"
)

type RoadmapService struct {
	repo      repository.RoadmapRepository
	publisher EventPublisher
}

// VoteResult is the state of one item after a toggle.
type VoteResult struct {
	ItemID     uint  `json:"item_id"`
	Voted      bool  `json:"voted"`
	VotesCount int64 `json:"votes_count"`
}

func NewRoadmapService(repo repository.RoadmapRepository, publisher EventPublisher) *RoadmapService {
	return &RoadmapService{repo: repo, publisher: publisherOrNoop(publisher)}
}

// List returns every item with the viewer's vote flags. The item list is
// shared across viewers and cached.
func (s *RoadmapService) List(ctx context.Context, viewerID uint) ([]models.RoadmapItem, error) {
	var items []models.RoadmapItem
	err := cache.Aside(ctx, cache.RoadmapListKey, &items, cache.RoadmapTTL, func() error {
		var err error
		items, err = s.repo.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if viewerID == 0 || len(items) == 0 {
		return items, nil
	}
	voted, err := s.repo.VotedItemIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(voted))
	for _, id := range voted {
		set[id] = true
	}
	for i := range items {
		items[i].Voted = set[items[i].ID]
	}
	return items, nil
}

// ToggleVote adds or removes the user's vote.
func (s *RoadmapService) ToggleVote(ctx context.Context, itemID, userID uint) (*VoteResult, error) {
	voted, votes, err := s.repo.ToggleVote(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.RoadmapListKey)
	res := &VoteResult{ItemID: itemID, Voted: voted, VotesCount: votes}
	s.publisher.PublishBroadcast(ctx, notifications.EventRoadmapUpdated, map[string]any{
		"item_id":     itemID,
		"votes_count": votes,
	})
	return res, nil
}

func (s *RoadmapService) Create(ctx context.Context, adminID uint, title, description string) (*models.RoadmapItem, error) {
	title = strings.TrimSpace(title)
	if err := validation.ValidateLength("title", title, 1, 200); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("description", description, 0, 5000); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	item := &models.RoadmapItem{
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      models.RoadmapPlanned,
		CreatedBy:   adminID,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.RoadmapListKey)
	return item, nil
}

func (s *RoadmapService) UpdateStatus(ctx context.Context, itemID uint, status models.RoadmapStatus) (*models.RoadmapItem, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("status must be planned, in_progress or done")
	}
	if err := s.repo.UpdateStatus(ctx, itemID, status); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.RoadmapListKey)
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishBroadcast(ctx, notifications.EventRoadmapUpdated, map[string]any{
		"item_id": itemID,
		"status":  status,
	})
	return item, nil
}
