package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"plantspack/internal/cache"
	"plantspack/internal/contentsafety"
	"plantspack/internal/featureflags"
	"plantspack/internal/models"
	"plantspack/internal/notifications"
	"plantspack/internal/observability"
	"plantspack/internal/repository"

	"github.com/redis/go-redis/v9"
)

// MinSearchLength is the shortest query that reaches the database.
const MinSearchLength = 3

// FlagVideoPosts gates video attachments on posts.
const FlagVideoPosts = "video_posts"

// PostDeps bundles the collaborators of PostService.
type PostDeps struct {
	Posts         repository.PostRepository
	Reactions     repository.ReactionRepository
	Hashtags      repository.HashtagRepository
	Users         repository.UserRepository
	Follows       repository.FollowRepository
	Moderation    repository.ModerationRepository
	Notifications *NotificationService
	Checker       contentsafety.Checker
	Flags         *featureflags.Manager
	Publisher     EventPublisher
	IsAdmin       func(ctx context.Context, userID uint) (bool, error)
}

type PostService struct {
	posts         repository.PostRepository
	reactions     repository.ReactionRepository
	hashtags      repository.HashtagRepository
	users         repository.UserRepository
	follows       repository.FollowRepository
	moderation    repository.ModerationRepository
	notifications *NotificationService
	checker       contentsafety.Checker
	flags         *featureflags.Manager
	publisher     EventPublisher
	isAdmin       func(ctx context.Context, userID uint) (bool, error)
}

type CreatePostInput struct {
	UserID     uint
	Content    string
	ImageURLs  []string
	VideoURL   string
	Visibility models.PostVisibility
	PlaceID    *uint
}

type UpdatePostInput struct {
	UserID     uint
	PostID     uint
	Content    string
	ImageURLs  []string
	Visibility models.PostVisibility
}

// Draft is the single server-side draft slot of a user.
type Draft struct {
	Content    string                `json:"content"`
	ImageURLs  []string              `json:"image_urls"`
	VideoURL   string                `json:"video_url,omitempty"`
	Visibility models.PostVisibility `json:"visibility,omitempty"`
	PlaceID    *uint                 `json:"place_id,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// ReactionResult is returned by like and reaction endpoints.
type ReactionResult struct {
	PostID     uint                          `json:"post_id"`
	Reacted    bool                          `json:"reacted"`
	Type       models.ReactionType           `json:"type,omitempty"`
	LikesCount int64                         `json:"likes_count"`
	Counts     map[models.ReactionType]int64 `json:"counts,omitempty"`
}

func NewPostService(deps PostDeps) *PostService {
	return &PostService{
		posts:         deps.Posts,
		reactions:     deps.Reactions,
		hashtags:      deps.Hashtags,
		users:         deps.Users,
		follows:       deps.Follows,
		moderation:    deps.Moderation,
		notifications: deps.Notifications,
		checker:       checkerOrAllow(deps.Checker),
		flags:         deps.Flags,
		publisher:     publisherOrNoop(deps.Publisher),
		isAdmin:       deps.IsAdmin,
	}
}

func (s *PostService) activeAuthor(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("Your account is suspended")
	}
	if user.IsAnonymized() {
		return nil, models.NewUnauthorizedError("Account no longer exists")
	}
	return user, nil
}

func validateContent(content string, tier models.SubscriptionTier) (string, error) {
	content = strings.TrimSpace(content)
	limit := tier.PostCharLimit()
	if n := utf8.RuneCountInString(content); n > limit {
		return "", models.NewValidationError(fmt.Sprintf("Post exceeds the %s tier limit of %d characters", tier, limit))
	}
	return content, nil
}

func validateImages(urls []string) ([]string, error) {
	if len(urls) > models.MaxPostImages {
		return nil, models.NewValidationError("A post can have at most 4 images")
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func normalizeVisibility(v models.PostVisibility) (models.PostVisibility, error) {
	switch v {
	case "":
		return models.VisibilityPublic, nil
	case models.VisibilityPublic, models.VisibilityFollowers:
		return v, nil
	}
	return "", models.NewValidationError("visibility must be public or followers")
}

// CreatePost runs the composer: validate, classify, insert, then the
// best-effort side effects in order (hashtags, mentions, broadcast).
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	author, err := s.activeAuthor(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	content, err := validateContent(in.Content, author.Tier)
	if err != nil {
		return nil, err
	}
	images, err := validateImages(in.ImageURLs)
	if err != nil {
		return nil, err
	}
	visibility, err := normalizeVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}
	video := strings.TrimSpace(in.VideoURL)
	if video != "" && !s.flags.EnabledForTier(FlagVideoPosts, author.ID, author.Tier) {
		return nil, models.NewForbiddenError("Video posts are not available on your plan")
	}
	if content == "" && len(images) == 0 && video == "" {
		return nil, models.NewValidationError("Post content is required")
	}
	if err := screen(ctx, s.checker, content); err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:     author.ID,
		Content:    content,
		ImageURLs:  images,
		VideoURL:   video,
		Visibility: visibility,
		PlaceID:    in.PlaceID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	post.Hashtags = s.linkHashtags(ctx, post.ID, content)
	s.notifyMentions(ctx, author, content, models.TargetPost, post.ID)
	if post.Visibility == models.VisibilityPublic {
		s.publisher.PublishBroadcast(ctx, notifications.EventPostCreated, map[string]uint{
			"post_id": post.ID,
			"user_id": author.ID,
		})
	}

	pub := author.PublicView()
	post.User = &pub
	return post, nil
}

func (s *PostService) linkHashtags(ctx context.Context, postID uint, content string) []string {
	tags := ExtractHashtags(content)
	if err := s.hashtags.LinkPost(ctx, postID, tags); err != nil {
		observability.LogAsyncOperationError(ctx, "link_hashtags", err, map[string]interface{}{"post_id": postID})
		return nil
	}
	return tags
}

func (s *PostService) notifyMentions(ctx context.Context, author *models.User, content, targetType string, targetID uint) {
	names := ExtractMentions(content)
	if len(names) == 0 {
		return
	}
	users, err := s.users.GetByUsernames(ctx, names)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "resolve_mentions", err, map[string]interface{}{"target_id": targetID})
		return
	}
	for _, u := range users {
		s.notifications.NotifyBestEffort(ctx, NotifyInput{
			RecipientID: u.ID,
			ActorID:     author.ID,
			Type:        models.NotificationMention,
			TargetType:  targetType,
			TargetID:    targetID,
			Message:     author.Username + " mentioned you",
		})
	}
}

// canView applies visibility and block rules for a single post.
func (s *PostService) canView(ctx context.Context, post *models.Post, viewerID uint) (bool, error) {
	if post.UserID == viewerID {
		return true, nil
	}
	if viewerID != 0 {
		blocked, err := s.moderation.IsBlockedEitherWay(ctx, viewerID, post.UserID)
		if err != nil {
			return false, err
		}
		if blocked {
			return false, nil
		}
	}
	if post.Visibility != models.VisibilityFollowers {
		return true, nil
	}
	if viewerID == 0 {
		return false, nil
	}
	return s.follows.IsFollowing(ctx, viewerID, post.UserID)
}

func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, post, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if err := s.decorate(ctx, viewerID, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// decorate fills liked flags, hashtags and strips private author fields.
func (s *PostService) decorate(ctx context.Context, viewerID uint, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if err := s.posts.MarkLiked(ctx, viewerID, posts); err != nil {
		return err
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	tags, err := s.hashtags.TagsForPosts(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Hashtags = tags[p.ID]
		if p.User != nil {
			pub := p.User.PublicView()
			p.User = &pub
		}
	}
	return nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}
	author, err := s.activeAuthor(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	content, err := validateContent(in.Content, author.Tier)
	if err != nil {
		return nil, err
	}
	if in.ImageURLs != nil {
		images, err := validateImages(in.ImageURLs)
		if err != nil {
			return nil, err
		}
		post.ImageURLs = images
	}
	if in.Visibility != "" {
		visibility, err := normalizeVisibility(in.Visibility)
		if err != nil {
			return nil, err
		}
		post.Visibility = visibility
	}
	if content == "" && len(post.ImageURLs) == 0 && post.VideoURL == "" {
		return nil, models.NewValidationError("Post content is required")
	}
	if err := screen(ctx, s.checker, content); err != nil {
		return nil, err
	}

	post.Content = content
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	post.Hashtags = s.linkHashtags(ctx, post.ID, content)
	return post, nil
}

// DeletePost soft-deletes a post. Owners and admins only.
func (s *PostService) DeletePost(ctx context.Context, postID, userID uint) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		admin := false
		if s.isAdmin != nil {
			if admin, err = s.isAdmin(ctx, userID); err != nil {
				return err
			}
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	s.publisher.PublishBroadcast(ctx, notifications.EventPostDeleted, map[string]uint{"post_id": postID})
	return nil
}

func (s *PostService) visiblePost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, post, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

// Like adds a like. Repeating it changes nothing.
func (s *PostService) Like(ctx context.Context, postID, userID uint) (*ReactionResult, error) {
	return s.react(ctx, postID, userID, models.ReactionLike, false)
}

// React sets the user's reaction type on a post, replacing a previous one.
func (s *PostService) React(ctx context.Context, postID, userID uint, kind models.ReactionType) (*ReactionResult, error) {
	if !kind.Valid() {
		return nil, models.NewValidationError("type must be one of like, love, helpful, inspiring")
	}
	return s.react(ctx, postID, userID, kind, true)
}

func (s *PostService) react(ctx context.Context, postID, userID uint, kind models.ReactionType, replace bool) (*ReactionResult, error) {
	if _, err := s.activeAuthor(ctx, userID); err != nil {
		return nil, err
	}
	post, err := s.visiblePost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	created, err := s.reactions.React(ctx, userID, models.TargetPost, postID, kind, replace)
	if err != nil {
		return nil, err
	}
	if created {
		s.notifications.NotifyBestEffort(ctx, NotifyInput{
			RecipientID: post.UserID,
			ActorID:     userID,
			Type:        models.NotificationLike,
			TargetType:  models.TargetPost,
			TargetID:    postID,
			Message:     "Someone reacted to your post",
			DedupKey:    reactionDedupKey(userID, models.TargetPost, postID),
		})
	}
	return s.reactionState(ctx, postID, userID)
}

// Unlike removes the user's reaction. Repeating it changes nothing.
func (s *PostService) Unlike(ctx context.Context, postID, userID uint) (*ReactionResult, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	if _, err := s.reactions.Remove(ctx, userID, models.TargetPost, postID); err != nil {
		return nil, err
	}
	return s.reactionState(ctx, postID, userID)
}

func (s *PostService) reactionState(ctx context.Context, postID, userID uint) (*ReactionResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	counts, err := s.reactions.CountByType(ctx, models.TargetPost, postID)
	if err != nil {
		return nil, err
	}
	mine, err := s.reactions.Get(ctx, userID, models.TargetPost, postID)
	if err != nil {
		return nil, err
	}
	res := &ReactionResult{PostID: postID, LikesCount: post.LikesCount, Counts: counts}
	if mine != nil {
		res.Reacted = true
		res.Type = mine.Type
	}
	s.publishReactionCounts(ctx, post, &ReactionResult{PostID: postID, LikesCount: post.LikesCount, Counts: counts})
	return res, nil
}

// publishReactionCounts sends the aggregate counts to the post's audience:
// everyone for public posts, the author and followers otherwise.
func (s *PostService) publishReactionCounts(ctx context.Context, post *models.Post, counts *ReactionResult) {
	if post.Visibility == models.VisibilityPublic {
		s.publisher.PublishBroadcast(ctx, notifications.EventPostReactionUpdated, counts)
		return
	}
	followers, err := s.follows.FollowerIDs(ctx, post.UserID)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "publish_reaction_counts", err, map[string]interface{}{"post_id": post.ID})
		followers = nil
	}
	for _, id := range append([]uint{post.UserID}, followers...) {
		s.publisher.PublishUser(ctx, id, notifications.EventPostReactionUpdated, counts)
	}
}

// Search matches post content. Short queries return an empty list.
func (s *PostService) Search(ctx context.Context, query string, viewerID uint, limit, offset int) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return []*models.Post{}, nil
	}
	posts, err := s.posts.Search(ctx, query, viewerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) ListByUser(ctx context.Context, authorID, viewerID uint, limit, offset int) ([]*models.Post, error) {
	if viewerID != 0 && viewerID != authorID {
		blocked, err := s.moderation.IsBlockedEitherWay(ctx, viewerID, authorID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return []*models.Post{}, nil
		}
	}
	posts, err := s.posts.ListByUser(ctx, authorID, viewerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func draftClient() (*redis.Client, error) {
	client := cache.GetClient()
	if client == nil {
		return nil, models.NewUnavailableError("Drafts are unavailable", nil)
	}
	return client, nil
}

// GetDraft returns the user's draft, or nil when there is none.
func (s *PostService) GetDraft(ctx context.Context, userID uint) (*Draft, error) {
	client, err := draftClient()
	if err != nil {
		return nil, err
	}
	raw, err := client.Get(ctx, cache.DraftKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewUnavailableError("Drafts are unavailable", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &d, nil
}

// SaveDraft overwrites the draft slot and refreshes its TTL.
func (s *PostService) SaveDraft(ctx context.Context, userID uint, d Draft) (*Draft, error) {
	if utf8.RuneCountInString(d.Content) > models.TierPremium.PostCharLimit() {
		return nil, models.NewValidationError("Draft is too long")
	}
	if _, err := validateImages(d.ImageURLs); err != nil {
		return nil, err
	}
	client, err := draftClient()
	if err != nil {
		return nil, err
	}
	d.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := client.Set(ctx, cache.DraftKey(userID), raw, cache.DraftTTL).Err(); err != nil {
		return nil, models.NewUnavailableError("Drafts are unavailable", err)
	}
	return &d, nil
}

func (s *PostService) DeleteDraft(ctx context.Context, userID uint) error {
	client, err := draftClient()
	if err != nil {
		return err
	}
	if err := client.Del(ctx, cache.DraftKey(userID)).Err(); err != nil {
		return models.NewUnavailableError("Drafts are unavailable", err)
	}
	return nil
}
