package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"plantspack/internal/cache"
	"plantspack/internal/contentsafety"
	"plantspack/internal/database"
	"plantspack/internal/featureflags"
	"plantspack/internal/models"
	"plantspack/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type publishedEvent struct {
	UserID  uint
	Type    string
	Payload any
}

// recordingPublisher captures realtime events instead of sending them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishUser(_ context.Context, userID uint, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) PublishBroadcast(_ context.Context, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// checkerStub blocks any text containing one of its words.
type checkerStub struct {
	blockWords []string
	calls      int
}

func (c *checkerStub) Analyze(_ context.Context, text string) contentsafety.Result {
	c.calls++
	for _, w := range c.blockWords {
		if strings.Contains(strings.ToLower(text), w) {
			return contentsafety.Result{
				ShouldBlock: true,
				Flagged:     true,
				Categories:  map[string]float64{"hate": 0.97},
				Reasons:     []string{"hate"},
			}
		}
	}
	return contentsafety.Result{Categories: map[string]float64{}, Reasons: []string{}}
}

// testStack wires every service over one in-memory database.
type testStack struct {
	db        *gorm.DB
	publisher *recordingPublisher
	checker   *checkerStub

	users         repository.UserRepository
	postRepo      repository.PostRepository
	notifyRepo    repository.NotificationRepository
	moderationRep repository.ModerationRepository

	notifications *NotificationService
	follows       *FollowService
	posts         *PostService
	comments      *CommentService
	feed          *FeedService
	places        *PlaceService
	moderation    *ModerationService
	accounts      *AccountService
	subscriptions *SubscriptionService
	userSvc       *UserService
	roadmap       *RoadmapService
	hashtags      *HashtagService
	admin         *AdminService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigrations(context.Background(), db))
	return db
}

func newTestStack(t *testing.T, flags string) *testStack {
	t.Helper()
	db := setupTestDB(t)
	return newStackOn(db, flags)
}

func newStackOn(db *gorm.DB, flags string) *testStack {
	st := &testStack{
		db:        db,
		publisher: &recordingPublisher{},
		checker:   &checkerStub{blockWords: []string{"slur"}},
	}
	manager := featureflags.NewManager(flags)

	st.users = repository.NewUserRepository(db)
	st.postRepo = repository.NewPostRepository(db)
	st.notifyRepo = repository.NewNotificationRepository(db)
	st.moderationRep = repository.NewModerationRepository(db)
	followRepo := repository.NewFollowRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	placeRepo := repository.NewPlaceRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	st.userSvc = NewUserService(st.users, followRepo, st.moderationRep, subRepo)
	st.notifications = NewNotificationService(st.notifyRepo, st.moderationRep, st.publisher)
	st.follows = NewFollowService(followRepo, st.users, st.moderationRep, st.notifications, st.publisher)
	st.posts = NewPostService(PostDeps{
		Posts:         st.postRepo,
		Reactions:     repository.NewReactionRepository(db),
		Hashtags:      repository.NewHashtagRepository(db),
		Users:         st.users,
		Follows:       followRepo,
		Moderation:    st.moderationRep,
		Notifications: st.notifications,
		Checker:       st.checker,
		Flags:         manager,
		Publisher:     st.publisher,
		IsAdmin:       st.userSvc.IsAdmin,
	})
	st.comments = NewCommentService(commentRepo, st.posts)
	st.feed = NewFeedService(st.posts, manager)
	st.places = NewPlaceService(placeRepo, st.users, st.notifications, st.checker, st.userSvc.IsAdmin)
	st.moderation = NewModerationService(db, ModerationRepos{
		Moderation:    st.moderationRep,
		Users:         st.users,
		Posts:         st.postRepo,
		Comments:      commentRepo,
		Places:        placeRepo,
		Subscriptions: subRepo,
	})
	st.accounts = NewAccountService(db, st.users, subRepo)
	st.subscriptions = NewSubscriptionService(subRepo, st.users, "whsec_test", st.publisher)
	st.roadmap = NewRoadmapService(repository.NewRoadmapRepository(db), st.publisher)
	st.hashtags = NewHashtagService(repository.NewHashtagRepository(db), st.posts)
	st.admin = NewAdminService(AdminDeps{
		Users:         st.userSvc,
		Accounts:      st.accounts,
		Subscriptions: st.subscriptions,
		Moderation:    st.moderation,
		Posts:         st.postRepo,
		Places:        placeRepo,
		Reports:       st.moderationRep,
		UserRepo:      st.users,
		Flags:         manager,
	})
	return st
}

func (st *testStack) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@plantspack.test",
		Password: "x",
		Tier:     models.TierFree,
	}
	require.NoError(t, st.db.Create(u).Error)
	return u
}

func (st *testStack) post(t *testing.T, userID uint, content string) *models.Post {
	t.Helper()
	p, err := st.posts.CreatePost(context.Background(), CreatePostInput{UserID: userID, Content: content})
	require.NoError(t, err)
	return p
}

// withRedis points the cache package at a fresh miniredis for one test.
func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = client.Close()
	})
	return mr
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
