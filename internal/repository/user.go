package repository

import (
	"context"
	"errors"
	"strings"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	List(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error)
	SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	PopulateCounts(ctx context.Context, user *models.User) error
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := readDB(ctx, r.db).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := readDB(ctx, r.db).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByUsername matches case-insensitively and returns (nil, nil) when absent.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := readDB(ctx, r.db).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return []models.User{}, nil
	}
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}
	var users []models.User
	err := readDB(ctx, r.db).
		Where("LOWER(username) IN ? AND anonymized_at IS NULL", lowered).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		if IsUniqueViolation(err) {
			return models.NewConflictError("Username or email already taken")
		}
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"user_id": user.ID})
	return nil
}

// Update writes the editable profile columns. Credentials, moderation state
// and anonymization go through UpdateFields.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("username", "bio", "avatar", "location", "website").
		Updates(user).Error
	if err != nil {
		if IsUniqueViolation(err) {
			return models.NewConflictError("Username or email already taken")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": user.ID})
	return nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return models.NewConflictError("Username or email already taken")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": id, "fields": len(fields)})
	return nil
}

// List pages through users for the admin panel, optionally filtered by a
// username/email substring.
func (r *userRepository) List(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error) {
	limit, offset = clampPage(limit, offset, 25, 100)
	q := readDB(ctx, r.db).Model(&models.User{})
	if query = strings.TrimSpace(query); query != "" {
		pattern := likePattern(query)
		q = q.Where("LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\'", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var users []models.User
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *userRepository) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	limit, _ = clampPage(limit, 0, 10, 10)
	var users []models.User
	err := readDB(ctx, r.db).
		Where("LOWER(username) LIKE ? ESCAPE '\\'", prefixPattern(prefix)).
		Where("anonymized_at IS NULL AND is_banned = ?", false).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// PopulateCounts fills the follower, following and post counters.
func (r *userRepository) PopulateCounts(ctx context.Context, user *models.User) error {
	db := readDB(ctx, r.db)
	if err := db.Model(&models.Follow{}).Where("following_id = ?", user.ID).Count(&user.FollowersCount).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", user.ID).Count(&user.FollowingCount).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Model(&models.Post{}).Where("user_id = ?", user.ID).Count(&user.PostsCount).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(ctx, r.db).Model(&models.User{}).Where("anonymized_at IS NULL").Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
