package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/validation"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DeleteConfirmation must be echoed back to delete an account.
const DeleteConfirmation = "DELETE"

// Export formats.
const (
	ExportJSON = "json"
	ExportYAML = "yaml"
)

type ExportProfile struct {
	ID        uint      `json:"id" yaml:"id"`
	Username  string    `json:"username" yaml:"username"`
	Email     string    `json:"email" yaml:"email"`
	Bio       string    `json:"bio" yaml:"bio"`
	Avatar    string    `json:"avatar" yaml:"avatar"`
	Location  string    `json:"location" yaml:"location"`
	Website   string    `json:"website" yaml:"website"`
	Tier      string    `json:"tier" yaml:"tier"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ExportPost struct {
	ID         uint      `json:"id" yaml:"id"`
	Content    string    `json:"content" yaml:"content"`
	ImageURLs  []string  `json:"image_urls" yaml:"image_urls"`
	VideoURL   string    `json:"video_url,omitempty" yaml:"video_url,omitempty"`
	Visibility string    `json:"visibility" yaml:"visibility"`
	LikesCount int64     `json:"likes_count" yaml:"likes_count"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

type ExportComment struct {
	ID        uint      `json:"id" yaml:"id"`
	PostID    uint      `json:"post_id" yaml:"post_id"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ExportPlace struct {
	ID        uint      `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Category  string    `json:"category" yaml:"category"`
	Latitude  float64   `json:"latitude" yaml:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude"`
	Address   string    `json:"address" yaml:"address"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ExportReview struct {
	PlaceID   uint      `json:"place_id" yaml:"place_id"`
	Rating    int       `json:"rating" yaml:"rating"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ExportSubscription struct {
	Tier             string     `json:"tier" yaml:"tier"`
	Status           string     `json:"status" yaml:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty" yaml:"current_period_end,omitempty"`
}

// AccountExport is everything a user can download about themselves.
type AccountExport struct {
	ExportedAt   time.Time          `json:"exported_at" yaml:"exported_at"`
	Profile      ExportProfile      `json:"profile" yaml:"profile"`
	Posts        []ExportPost       `json:"posts" yaml:"posts"`
	Comments     []ExportComment    `json:"comments" yaml:"comments"`
	Following    []string           `json:"following" yaml:"following"`
	Followers    []string           `json:"followers" yaml:"followers"`
	Places       []ExportPlace      `json:"places" yaml:"places"`
	Reviews      []ExportReview     `json:"reviews" yaml:"reviews"`
	Subscription ExportSubscription `json:"subscription" yaml:"subscription"`
}

// AccountService exports and deletes accounts.
type AccountService struct {
	db            *gorm.DB
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
}

func NewAccountService(db *gorm.DB, users repository.UserRepository, subscriptions repository.SubscriptionRepository) *AccountService {
	return &AccountService{db: db, users: users, subscriptions: subscriptions}
}

// Export gathers the user's data into export DTOs.
func (s *AccountService) Export(ctx context.Context, userID uint) (*AccountExport, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	out := &AccountExport{ExportedAt: time.Now().UTC()}
	if err := copier.Copy(&out.Profile, user); err != nil {
		return nil, models.NewInternalError(err)
	}

	var posts []models.Post
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	var comments []models.Comment
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	var places []models.Place
	if err := db.Where("created_by = ?", userID).Order("created_at ASC").Find(&places).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	var reviews []models.PlaceReview
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Find(&reviews).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	out.Posts = []ExportPost{}
	out.Comments = []ExportComment{}
	out.Places = []ExportPlace{}
	out.Reviews = []ExportReview{}
	for _, pair := range []struct{ to, from any }{
		{&out.Posts, &posts},
		{&out.Comments, &comments},
		{&out.Places, &places},
		{&out.Reviews, &reviews},
	} {
		if err := copier.Copy(pair.to, pair.from); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	out.Following = []string{}
	if err := db.Model(&models.User{}).
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("users.username ASC").
		Pluck("users.username", &out.Following).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	out.Followers = []string{}
	if err := db.Model(&models.User{}).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", userID).
		Order("users.username ASC").
		Pluck("users.username", &out.Followers).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	sub, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := copier.Copy(&out.Subscription, sub); err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

// Render encodes an export as json or yaml and returns the content type.
func Render(export *AccountExport, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", ExportJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(export); err != nil {
			return nil, "", models.NewInternalError(err)
		}
		return buf.Bytes(), "application/json", nil
	case ExportYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(export); err != nil {
			return nil, "", models.NewInternalError(err)
		}
		if err := enc.Close(); err != nil {
			return nil, "", models.NewInternalError(err)
		}
		return buf.Bytes(), "application/yaml", nil
	}
	return nil, "", models.NewValidationError("format must be json or yaml")
}

// DeleteAccount anonymizes the user after checking the confirmation phrase.
func (s *AccountService) DeleteAccount(ctx context.Context, userID uint, confirm string) error {
	if confirm != DeleteConfirmation {
		return models.NewValidationError(`Type "DELETE" to confirm account deletion`)
	}
	return s.Anonymize(ctx, userID)
}

// DeleteUserContent soft-deletes all posts and comments of a user in one
// transaction and returns how many rows were affected.
func (s *AccountService) DeleteUserContent(ctx context.Context, userID uint) (posts, comments int64, err error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return 0, 0, err
	}
	var stale []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		posts, comments, stale, err = deleteContentTx(tx, userID)
		return err
	})
	if err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	invalidatePosts(ctx, stale)
	return posts, comments, nil
}

// Anonymize scrubs the profile, removes the social graph and content, and
// downgrades the subscription. The user row is kept.
func (s *AccountService) Anonymize(ctx context.Context, userID uint) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAnonymized() {
		return models.NewConflictError("Account is already deleted")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}

	var stale []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, _, touched, err := deleteContentTx(tx, userID)
		if err != nil {
			return err
		}
		stale = append(stale, touched...)
		for _, edge := range []struct {
			model any
			where string
		}{
			{&models.Follow{}, "follower_id = ? OR following_id = ?"},
			{&models.UserBlock{}, "blocker_id = ? OR blocked_id = ?"},
			{&models.UserMute{}, "muter_id = ? OR muted_id = ?"},
		} {
			if err := tx.Where(edge.where, userID, userID).Delete(edge.model).Error; err != nil {
				return err
			}
		}
		reacted, err := removeReactionsTx(tx, userID)
		if err != nil {
			return err
		}
		stale = append(stale, reacted...)
		if err := tx.Where("user_id = ?", userID).Delete(&models.PlaceFavorite{}).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"username":      fmt.Sprintf("%s%d", validation.DeletedUsernamePrefix, userID),
			"email":         fmt.Sprintf("%s%d@deleted.plantspack.local", validation.DeletedUsernamePrefix, userID),
			"password":      string(hash),
			"bio":           "",
			"avatar":        "",
			"location":      "",
			"website":       "",
			"is_admin":      false,
			"tier":          models.TierFree,
			"anonymized_at": now,
		}).Error; err != nil {
			return err
		}
		return repository.UpsertSubscriptionTx(tx, &models.Subscription{
			UserID: userID,
			Tier:   models.TierFree,
			Status: models.SubscriptionCanceled,
		})
	})
	if err != nil {
		return models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, userID)
	invalidatePosts(ctx, stale)
	return nil
}

// deleteContentTx soft-deletes the user's posts and comments and repairs
// the counters of posts that lost comments. stale lists every post whose
// cached copy is now wrong: the user's own and the ones they commented on.
func deleteContentTx(tx *gorm.DB, userID uint) (posts, comments int64, stale []uint, err error) {
	var own, touched []uint
	if err = tx.Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &own).Error; err != nil {
		return
	}
	if err = tx.Model(&models.Comment{}).Where("user_id = ?", userID).Distinct().Pluck("post_id", &touched).Error; err != nil {
		return
	}

	res := tx.Where("user_id = ?", userID).Delete(&models.Comment{})
	if err = res.Error; err != nil {
		return
	}
	comments = res.RowsAffected

	res = tx.Where("user_id = ?", userID).Delete(&models.Post{})
	if err = res.Error; err != nil {
		return
	}
	posts = res.RowsAffected

	if err = recountPosts(tx, touched); err != nil {
		return
	}
	stale = append(own, touched...)
	return
}

// removeReactionsTx drops the user's reactions, recounts the posts and
// comments they were on and returns the recounted post IDs.
func removeReactionsTx(tx *gorm.DB, userID uint) ([]uint, error) {
	var postIDs, commentIDs []uint
	if err := tx.Model(&models.Reaction{}).Where("user_id = ? AND target_type = ?", userID, models.TargetPost).Pluck("target_id", &postIDs).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Reaction{}).Where("user_id = ? AND target_type = ?", userID, models.TargetComment).Pluck("target_id", &commentIDs).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.Reaction{}).Error; err != nil {
		return nil, err
	}
	if len(commentIDs) > 0 {
		if err := tx.Exec(`UPDATE comments SET likes_count = (SELECT COUNT(*) FROM reactions
			WHERE reactions.target_type = ? AND reactions.target_id = comments.id) WHERE id IN ?`,
			models.TargetComment, commentIDs).Error; err != nil {
			return nil, err
		}
	}
	return postIDs, recountPosts(tx, postIDs)
}

func recountPosts(tx *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	if err := tx.Exec(`UPDATE posts SET
		likes_count = (SELECT COUNT(*) FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = posts.id),
		comments_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL)
		WHERE id IN ?`, models.TargetPost, postIDs).Error; err != nil {
		return err
	}
	return tx.Exec("UPDATE posts SET engagement_score = likes_count + comments_count WHERE id IN ?", postIDs).Error
}

func invalidatePosts(ctx context.Context, ids []uint) {
	for _, id := range ids {
		cache.InvalidatePost(ctx, id)
	}
}
