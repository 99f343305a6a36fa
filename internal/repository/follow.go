package repository

import (
	"context"

	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores the directed social graph.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followingID uint) (created bool, err error)
	Unfollow(ctx context.Context, followerID, followingID uint) (removed bool, err error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
}

type followRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewFollowRepository returns the gorm FollowRepository.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db, log: observability.NewRepoLogger("follows")}
}

func (r *followRepository) Follow(ctx context.Context, followerID, followingID uint) (bool, error) {
	edge := models.Follow{FollowerID: followerID, FollowingID: followingID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
		DoNothing: true,
	}).Create(&edge)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "follow")
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 1 {
		r.log.LogCreate(ctx, map[string]interface{}{"follower_id": followerID, "following_id": followingID})
		return true, nil
	}
	return false, nil
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var n int64
	err := readDB(ctx, r.db).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *followRepository) listUsers(ctx context.Context, join, where string, userID uint, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset, 50, 100)
	var users []models.User
	err := readDB(ctx, r.db).
		Joins(join).
		Where(where, userID).
		Where("users.anonymized_at IS NULL").
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.listUsers(ctx, "JOIN follows ON follows.follower_id = users.id", "follows.following_id = ?", userID, limit, offset)
}

func (r *followRepository) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.listUsers(ctx, "JOIN follows ON follows.following_id = users.id", "follows.follower_id = ?", userID, limit, offset)
}

// FollowerIDs lists the IDs of everyone following userID.
func (r *followRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := readDB(ctx, r.db).Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
