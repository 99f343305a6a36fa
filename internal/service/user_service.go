package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo      repository.UserRepository
	follows       repository.FollowRepository
	moderation    repository.ModerationRepository
	subscriptions repository.SubscriptionRepository
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

// UpdateProfileInput carries optional profile fields; nil leaves a field unchanged.
type UpdateProfileInput struct {
	UserID   uint
	Username *string
	Bio      *string
	Avatar   *string
	Location *string
	Website  *string
}

func NewUserService(
	userRepo repository.UserRepository,
	follows repository.FollowRepository,
	moderation repository.ModerationRepository,
	subscriptions repository.SubscriptionRepository,
) *UserService {
	return &UserService{
		userRepo:      userRepo,
		follows:       follows,
		moderation:    moderation,
		subscriptions: subscriptions,
	}
}

// Signup creates an account on the free tier.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if existing, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}
	if existing, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Tier:     models.TierFree,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Upsert(ctx, &models.Subscription{
		UserID: user.ID,
		Tier:   models.TierFree,
		Status: models.SubscriptionActive,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords
// produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsAnonymized() {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("Your account is suspended")
	}
	return user, nil
}

// SetPassword replaces a password after validating its strength.
func (s *UserService) SetPassword(ctx context.Context, userID uint, password string) error {
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewValidationError(err.Error())
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.userRepo.UpdateFields(ctx, userID, map[string]any{"password": string(hashed)})
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", email)
	}
	return user, nil
}

// Me returns the caller's own profile with counts.
func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.PopulateCounts(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetProfile returns another user's public profile. Blocked pairs see NOT_FOUND.
func (s *UserService) GetProfile(ctx context.Context, id, viewerID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewerID != 0 && viewerID != id {
		blocked, err := s.moderation.IsBlockedEitherWay(ctx, viewerID, id)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, models.NewNotFoundError("User", id)
		}
		if user.IsFollowing, err = s.follows.IsFollowing(ctx, viewerID, id); err != nil {
			return nil, err
		}
	}
	if err := s.userRepo.PopulateCounts(ctx, user); err != nil {
		return nil, err
	}
	pub := user.PublicView()
	if viewerID == id {
		pub.Email = user.Email
	}
	return &pub, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if !strings.EqualFold(username, user.Username) {
			existing, err := s.userRepo.GetByUsername(ctx, username)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, models.NewConflictError("Username already taken")
			}
		}
		user.Username = username
	}
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > 500 {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.Location != nil {
		if utf8.RuneCountInString(*in.Location) > 120 {
			return nil, models.NewValidationError("Location too long (max 120 characters)")
		}
		user.Location = strings.TrimSpace(*in.Location)
	}
	if in.Website != nil {
		website := strings.TrimSpace(*in.Website)
		if err := validation.ValidateWebsite(website); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Website = website
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SearchUsers autocompletes usernames by prefix.
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	query = strings.TrimPrefix(strings.TrimSpace(query), "@")
	if utf8.RuneCountInString(query) < MinSearchLength {
		return []models.User{}, nil
	}
	users, err := s.userRepo.SearchByPrefix(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	return publicUsers(users), nil
}

func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	if err := s.userRepo.UpdateFields(ctx, targetID, map[string]any{"is_admin": isAdmin}); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}

func (s *UserService) ListUsers(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error) {
	return s.userRepo.List(ctx, query, limit, offset)
}

// IsAdmin is the admin check handed to other services.
func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}
