package service

import (
	"context"
	"math"
	"sort"
	"time"

	"plantspack/internal/featureflags"
	"plantspack/internal/models"
	"plantspack/internal/observability"
	"plantspack/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	SortRelevancy = "relevancy"

	// FlagRelevancyFeed turns on in-memory relevancy ranking.
	FlagRelevancyFeed = "relevancy_feed"

	// RelevancyWindow is how many recent posts are ranked for the first page.
	RelevancyWindow = 200

	engagementWeight = 0.7
	recencyWeight    = 0.3
	recencyHalfLife  = 24.0

	defaultFeedLimit = 20
	maxFeedLimit     = 50
)

// FeedQuery is one feed page request.
type FeedQuery struct {
	ViewerID uint
	Sort     string
	Limit    int
	Offset   int
}

// FeedResult is a feed page. Degraded marks a failed read that the client
// should offer to retry.
type FeedResult struct {
	Posts      []*models.Post `json:"posts"`
	Sort       string         `json:"sort"`
	Degraded   bool           `json:"degraded"`
	NextOffset *int           `json:"next_offset"`
}

type FeedService struct {
	posts *PostService
	flags *featureflags.Manager
	now   func() time.Time
}

func NewFeedService(posts *PostService, flags *featureflags.Manager) *FeedService {
	return &FeedService{posts: posts, flags: flags, now: time.Now}
}

// RelevancyScore weighs engagement against an exponential recency decay.
func RelevancyScore(p *models.Post, now time.Time) float64 {
	hours := now.Sub(p.CreatedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	engagement := float64(p.LikesCount + p.CommentsCount)
	return engagementWeight*engagement + recencyWeight*math.Exp(-hours/recencyHalfLife)
}

// NormalizeSort maps user input to a known sort, defaulting to relevancy.
func NormalizeSort(raw string) string {
	switch raw {
	case SortRelevancy, repository.SortRecent, repository.SortPopular, repository.SortFollowing:
		return raw
	}
	return SortRelevancy
}

// Feed never returns an error. Read failures produce an empty degraded page.
func (s *FeedService) Feed(ctx context.Context, q FeedQuery) *FeedResult {
	sortBy := NormalizeSort(q.Sort)
	if sortBy == repository.SortFollowing && q.ViewerID == 0 {
		sortBy = repository.SortRecent
	}
	if sortBy == SortRelevancy && !s.flags.Enabled(FlagRelevancyFeed, q.ViewerID) {
		sortBy = repository.SortPopular
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	ctx, span := observability.StartSpan(ctx, "feed.load",
		attribute.String("feed.sort", sortBy),
		attribute.Int("feed.offset", offset))
	posts, err := s.load(ctx, q.ViewerID, sortBy, limit, offset)
	if err == nil {
		err = s.posts.decorate(ctx, q.ViewerID, posts)
	}
	observability.EndSpan(span, err)

	if err != nil {
		observability.FeedRequests.WithLabelValues(sortBy, "degraded").Inc()
		observability.LogAsyncOperationError(ctx, "feed", err, map[string]interface{}{"sort": sortBy})
		return &FeedResult{Posts: []*models.Post{}, Sort: sortBy, Degraded: true}
	}
	observability.FeedRequests.WithLabelValues(sortBy, "ok").Inc()

	res := &FeedResult{Posts: posts, Sort: sortBy}
	if len(posts) == limit {
		next := offset + limit
		res.NextOffset = &next
	}
	return res
}

func (s *FeedService) load(ctx context.Context, viewerID uint, sortBy string, limit, offset int) ([]*models.Post, error) {
	repo := s.posts.posts
	if sortBy != SortRelevancy {
		return repo.ListFeed(ctx, repository.FeedQuery{ViewerID: viewerID, Sort: sortBy, Limit: limit, Offset: offset})
	}
	if offset > 0 {
		return repo.ListFeed(ctx, repository.FeedQuery{ViewerID: viewerID, Sort: repository.SortPopular, Limit: limit, Offset: offset})
	}

	candidates, err := repo.ListFeed(ctx, repository.FeedQuery{
		ViewerID: viewerID,
		Sort:     repository.SortRecent,
		Limit:    RelevancyWindow,
	})
	if err != nil {
		return nil, err
	}
	return rankByRelevancy(candidates, s.now(), limit), nil
}

func rankByRelevancy(posts []*models.Post, now time.Time, limit int) []*models.Post {
	scores := make(map[uint]float64, len(posts))
	for _, p := range posts {
		scores[p.ID] = RelevancyScore(p, now)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return scores[posts[i].ID] > scores[posts[j].ID]
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}
