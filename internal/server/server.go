// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	_ "plantspack/docs" // swagger docs
	"plantspack/internal/cache"
	"plantspack/internal/config"
	"plantspack/internal/contentsafety"
	"plantspack/internal/database"
	"plantspack/internal/featureflags"
	"plantspack/internal/geocode"
	"plantspack/internal/middleware"
	"plantspack/internal/models"
	"plantspack/internal/notifications"
	"plantspack/internal/repository"
	"plantspack/internal/service"
	"plantspack/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// bodyLimit fits the largest media policy (50 MB video) plus multipart overhead.
const bodyLimit = 55 * 1024 * 1024

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	publisher    *notifications.Publisher
	featureFlags *featureflags.Manager
	storage      *storage.Service
	geocoder     *geocode.Client
	checker      contentsafety.Checker

	userService         *service.UserService
	notificationService *service.NotificationService
	followService       *service.FollowService
	postService         *service.PostService
	commentService      *service.CommentService
	feedService         *service.FeedService
	placeService        *service.PlaceService
	moderationService   *service.ModerationService
	accountService      *service.AccountService
	subscriptionService *service.SubscriptionService
	roadmapService      *service.RoadmapService
	hashtagService      *service.HashtagService
	adminService        *service.AdminService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	media, err := storage.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}
	if redisClient != nil {
		cache.SetClient(redisClient)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("plantspack-api"),
		userRepo:       repository.NewUserRepository(db),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		storage:        media,
		geocoder:       geocode.NewClient(cfg.GeocodeURL, cfg.GeocodeUserAgent),
		checker:        contentsafety.NewClient(cfg.ContentSafetyURL, cfg.ContentSafetyAPIKey),
	}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	s.publisher = notifications.NewPublisher(s.hub, s.notifier)
	s.wireServices()

	return s, nil
}

func (s *Server) wireServices() {
	postRepo := repository.NewPostRepository(s.db)
	followRepo := repository.NewFollowRepository(s.db)
	moderationRepo := repository.NewModerationRepository(s.db)
	commentRepo := repository.NewCommentRepository(s.db)
	placeRepo := repository.NewPlaceRepository(s.db)
	subscriptionRepo := repository.NewSubscriptionRepository(s.db)
	hashtagRepo := repository.NewHashtagRepository(s.db)

	s.userService = service.NewUserService(s.userRepo, followRepo, moderationRepo, subscriptionRepo)
	s.notificationService = service.NewNotificationService(
		repository.NewNotificationRepository(s.db), moderationRepo, s.publisher)
	s.followService = service.NewFollowService(
		followRepo, s.userRepo, moderationRepo, s.notificationService, s.publisher)
	s.postService = service.NewPostService(service.PostDeps{
		Posts:         postRepo,
		Reactions:     repository.NewReactionRepository(s.db),
		Hashtags:      hashtagRepo,
		Users:         s.userRepo,
		Follows:       followRepo,
		Moderation:    moderationRepo,
		Notifications: s.notificationService,
		Checker:       s.checker,
		Flags:         s.featureFlags,
		Publisher:     s.publisher,
		IsAdmin:       s.isAdminByUserID,
	})
	s.commentService = service.NewCommentService(commentRepo, s.postService)
	s.feedService = service.NewFeedService(s.postService, s.featureFlags)
	s.placeService = service.NewPlaceService(
		placeRepo, s.userRepo, s.notificationService, s.checker, s.isAdminByUserID)
	s.moderationService = service.NewModerationService(s.db, service.ModerationRepos{
		Moderation:    moderationRepo,
		Users:         s.userRepo,
		Posts:         postRepo,
		Comments:      commentRepo,
		Places:        placeRepo,
		Subscriptions: subscriptionRepo,
	})
	s.accountService = service.NewAccountService(s.db, s.userRepo, subscriptionRepo)
	s.subscriptionService = service.NewSubscriptionService(
		subscriptionRepo, s.userRepo, s.config.BillingSecret, s.publisher)
	s.roadmapService = service.NewRoadmapService(repository.NewRoadmapRepository(s.db), s.publisher)
	s.hashtagService = service.NewHashtagService(hashtagRepo, s.postService)
	s.adminService = service.NewAdminService(service.AdminDeps{
		Users:         s.userService,
		Accounts:      s.accountService,
		Subscriptions: s.subscriptionService,
		Moderation:    s.moderationService,
		Posts:         postRepo,
		Places:        placeRepo,
		Reports:       moderationRepo,
		UserRepo:      s.userRepo,
		Flags:         s.featureFlags,
	})
}

// NewApp builds a Fiber app with the full middleware stack and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "PlantsPack API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(pinPrimaryOnWrites)

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so browsers still see CORS headers on 429s.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Billing-Signature, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
// Public routes are registered before the protected group, whose auth
// middleware applies to everything under /api registered after it.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	if s.config.StorageBackend != "s3" && strings.HasPrefix(s.config.StoragePublicURL, "/") {
		app.Static(s.config.StoragePublicURL, s.config.StorageDir, fiber.Static{MaxAge: 86400})
	}

	api := app.Group("/api")
	api.Get("/", s.HealthCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "PlantsPack Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, middleware.SignupLimit), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.LoginLimit), s.Login)
	auth.Post("/logout", s.Logout)

	api.Post("/billing/webhook", s.BillingWebhook)

	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	// Routes with a literal segment that would otherwise match /:id.
	api.Get("/posts/draft", s.AuthRequired(), s.GetDraft)
	api.Put("/posts/draft", s.AuthRequired(), s.SaveDraft)
	api.Delete("/posts/draft", s.AuthRequired(), s.DeleteDraft)
	api.Get("/users/me", s.AuthRequired(), s.GetMyProfile)
	api.Put("/users/me", s.AuthRequired(), s.UpdateMyProfile)
	api.Get("/users/me/favorites", s.AuthRequired(), s.ListMyFavorites)
	api.Get("/users/me/blocks", s.AuthRequired(), s.ListMyBlocks)
	api.Get("/users/me/mutes", s.AuthRequired(), s.ListMyMutes)

	// Public reads; a session, when present, personalizes the result.
	api.Get("/feed", s.GetFeed)
	api.Get("/posts/search", middleware.RateLimit(s.redis, middleware.PostSearchLimit), s.SearchPosts)
	api.Get("/posts/:id/comments", s.GetComments)
	api.Get("/posts/:id", s.GetPost)
	api.Get("/users/search", middleware.RateLimit(s.redis, middleware.UserSearchLimit), s.SearchUsers)
	api.Get("/users/:id/posts", s.GetUserPosts)
	api.Get("/users/:id/followers", s.GetFollowers)
	api.Get("/users/:id/following", s.GetFollowing)
	api.Get("/users/:id", s.GetUserProfile)
	api.Get("/places", s.ListPlaces)
	api.Get("/places/:id/reviews", s.ListReviews)
	api.Get("/places/:id", s.GetPlace)
	api.Get("/hashtags/trending", s.GetTrendingHashtags)
	api.Get("/hashtags/:tag/posts", s.GetHashtagPosts)
	api.Get("/roadmap", s.GetRoadmap)

	protected := api.Group("", s.AuthRequired())

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.redis, middleware.ComposeLimit), s.CreatePost)
	posts.Post("/:id/like", s.LikePost)
	posts.Delete("/:id/like", s.UnlikePost)
	posts.Post("/:id/reactions", s.ReactToPost)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, middleware.CommentLimit), s.CreateComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	comments := protected.Group("/comments")
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	users := protected.Group("/users")
	users.Post("/:id/follow", middleware.RateLimit(s.redis, middleware.FollowLimit), s.FollowUser)
	users.Delete("/:id/follow", s.UnfollowUser)
	users.Post("/:id/block", s.BlockUser)
	users.Delete("/:id/block", s.UnblockUser)
	users.Post("/:id/mute", s.MuteUser)
	users.Delete("/:id/mute", s.UnmuteUser)

	places := protected.Group("/places")
	places.Post("/", middleware.RateLimit(s.redis, middleware.AddPlaceLimit), s.CreatePlace)
	places.Post("/:id/reviews", s.CreateReview)
	places.Put("/:id/reviews", s.UpdateReview)
	places.Delete("/:id/reviews", s.DeleteReview)
	places.Post("/:id/favorite", s.FavoritePlace)
	places.Delete("/:id/favorite", s.UnfavoritePlace)
	places.Delete("/:id", s.DeletePlace)

	geo := protected.Group("/geocode", middleware.RateLimit(s.redis, middleware.GeocodeLimit))
	geo.Get("/search", s.GeocodeSearch)
	geo.Get("/reverse", s.GeocodeReverse)

	protected.Post("/content/analyze", middleware.RateLimit(s.redis, middleware.ContentCheckLimit), s.AnalyzeContent)

	media := protected.Group("/media")
	media.Post("/:bucket", middleware.RateLimit(s.redis, middleware.MediaUploadLimit), s.UploadMedia)
	media.Delete("/:bucket/*", s.DeleteMedia)

	notes := protected.Group("/notifications")
	notes.Get("/", s.GetNotifications)
	notes.Get("/unread-count", s.GetUnreadCount)
	notes.Post("/read-all", s.MarkAllNotificationsRead)
	notes.Post("/:id/read", s.MarkNotificationRead)

	protected.Get("/subscription/me", s.GetMySubscription)
	protected.Post("/reports", middleware.RateLimit(s.redis, middleware.ReportLimit), s.CreateReport)
	protected.Get("/account/export", middleware.RateLimit(s.redis, middleware.AccountExportLimit), s.ExportAccount)
	protected.Delete("/account", s.DeleteAccount)
	protected.Post("/roadmap/:id/vote", s.VoteRoadmapItem)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/users", s.GetAdminUsers)
	admin.Post("/users", s.CreateAdminUser)
	admin.Get("/users/:id", s.GetAdminUserDetail)
	admin.Put("/users/:id", s.UpdateAdminUser)
	admin.Delete("/users/:id", s.DeleteAdminUser)
	admin.Delete("/posts/:id", s.DeleteAdminPost)
	admin.Get("/reports", s.GetAdminReports)
	admin.Post("/reports/:id/resolve", s.ResolveAdminReport)
	admin.Get("/ban-requests", s.GetAdminBanRequests)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/roadmap", s.CreateRoadmapItem)
	admin.Put("/roadmap/:id", s.UpdateRoadmapItem)
}

// HealthCheck is a simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "PlantsPack API",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
