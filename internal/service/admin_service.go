package service

import (
	"context"

	"plantspack/internal/cache"
	"plantspack/internal/featureflags"
	"plantspack/internal/models"
	"plantspack/internal/repository"
)

// AdminStats is the dashboard summary.
type AdminStats struct {
	Users       int64 `json:"users"`
	Posts       int64 `json:"posts"`
	Places      int64 `json:"places"`
	OpenReports int64 `json:"open_reports"`
}

// AdminUpdateUserInput changes role, tier or ban state. Nil fields are kept.
type AdminUpdateUserInput struct {
	UserID  uint
	IsAdmin *bool
	Tier    *string
	Banned  *bool
}

type AdminCreateUserInput struct {
	SignupInput
	IsAdmin bool
	Tier    string
}

// AdminService backs the admin panel and the admin CLI.
type AdminService struct {
	users         *UserService
	accounts      *AccountService
	subscriptions *SubscriptionService
	moderation    *ModerationService
	posts         repository.PostRepository
	places        repository.PlaceRepository
	reports       repository.ModerationRepository
	userRepo      repository.UserRepository
	flags         *featureflags.Manager
}

// AdminDeps bundles the collaborators of AdminService.
type AdminDeps struct {
	Users         *UserService
	Accounts      *AccountService
	Subscriptions *SubscriptionService
	Moderation    *ModerationService
	Posts         repository.PostRepository
	Places        repository.PlaceRepository
	Reports       repository.ModerationRepository
	UserRepo      repository.UserRepository
	Flags         *featureflags.Manager
}

func NewAdminService(deps AdminDeps) *AdminService {
	return &AdminService{
		users:         deps.Users,
		accounts:      deps.Accounts,
		subscriptions: deps.Subscriptions,
		moderation:    deps.Moderation,
		posts:         deps.Posts,
		places:        deps.Places,
		reports:       deps.Reports,
		userRepo:      deps.UserRepo,
		flags:         deps.Flags,
	}
}

func (s *AdminService) Stats(ctx context.Context) (*AdminStats, error) {
	var stats AdminStats
	err := cache.Aside(ctx, cache.AdminStatsKey, &stats, cache.AdminStatsTTL, func() error {
		var err error
		if stats.Users, err = s.userRepo.Count(ctx); err != nil {
			return err
		}
		if stats.Posts, err = s.posts.Count(ctx); err != nil {
			return err
		}
		if stats.Places, err = s.places.Count(ctx); err != nil {
			return err
		}
		stats.OpenReports, err = s.reports.CountOpenReports(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *AdminService) ListUsers(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error) {
	return s.users.ListUsers(ctx, query, limit, offset)
}

func (s *AdminService) UserDetail(ctx context.Context, userID uint) (*AdminUserDetail, error) {
	return s.moderation.GetAdminUserDetail(ctx, userID)
}

func (s *AdminService) CreateUser(ctx context.Context, in AdminCreateUserInput) (*models.User, error) {
	user, err := s.users.Signup(ctx, in.SignupInput)
	if err != nil {
		return nil, err
	}
	if in.IsAdmin {
		if user, err = s.users.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, err
		}
	}
	if in.Tier != "" && in.Tier != string(models.TierFree) {
		if _, err := s.subscriptions.SetTier(ctx, user.ID, in.Tier); err != nil {
			return nil, err
		}
		if user, err = s.users.GetUserByID(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	cache.Invalidate(ctx, cache.AdminStatsKey)
	return user, nil
}

// UpdateUser applies role, tier and ban changes. Admins cannot demote or
// ban themselves.
func (s *AdminService) UpdateUser(ctx context.Context, actorID uint, in AdminUpdateUserInput) (*models.User, error) {
	if in.UserID == actorID && ((in.IsAdmin != nil && !*in.IsAdmin) || (in.Banned != nil && *in.Banned)) {
		return nil, models.NewValidationError("You cannot demote or ban yourself")
	}
	if _, err := s.users.GetUserByID(ctx, in.UserID); err != nil {
		return nil, err
	}
	if in.Tier != nil {
		if _, err := s.subscriptions.SetTier(ctx, in.UserID, *in.Tier); err != nil {
			return nil, err
		}
	}
	if in.IsAdmin != nil {
		if _, err := s.users.SetAdmin(ctx, in.UserID, *in.IsAdmin); err != nil {
			return nil, err
		}
	}
	if in.Banned != nil {
		if err := s.moderation.SetBanned(ctx, in.UserID, *in.Banned); err != nil {
			return nil, err
		}
	}
	return s.users.GetUserByID(ctx, in.UserID)
}

// DeleteUser anonymizes the account.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID uint) error {
	if actorID == userID {
		return models.NewValidationError("Use account deletion to remove your own account")
	}
	if err := s.accounts.Anonymize(ctx, userID); err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.AdminStatsKey)
	return nil
}

func (s *AdminService) DeletePost(ctx context.Context, postID uint) error {
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.AdminStatsKey)
	return nil
}

// FeatureFlags returns the configured rules and their value for the admin.
func (s *AdminService) FeatureFlags(ctx context.Context, adminID uint) (map[string]any, error) {
	user, err := s.users.GetUserByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"rules":   s.flags.Raw(),
		"enabled": s.flags.Snapshot(user.ID, user.Tier),
	}, nil
}
