package seed

import (
	"context"
	"errors"
	"fmt"
	"log"

	"plantspack/internal/database"
	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/service"

	"gorm.io/gorm"
)

// Options configures the seeder and its factory.
type Options struct {
	NumUsers  int
	NumPosts  int
	NumPlaces int
	// FollowsPerUser is an upper bound; self-follows and duplicates are skipped.
	FollowsPerUser int
	ShouldClean    bool
	// SkipBcrypt stores the plain password. Only for tests.
	SkipBcrypt bool
	DryRun     bool
	MaxDays    int
	// CenterLat/CenterLng anchor the generated places. Defaults to Berlin.
	CenterLat float64
	CenterLng float64
	SpreadKm  float64
}

func (o Options) withDefaults() Options {
	if o.FollowsPerUser <= 0 {
		o.FollowsPerUser = 5
	}
	if o.CenterLat == 0 && o.CenterLng == 0 {
		o.CenterLat, o.CenterLng = 52.52, 13.405
	}
	if o.SpreadKm <= 0 {
		o.SpreadKm = 15
	}
	return o
}

// Summary counts what a seeding run created.
type Summary struct {
	Users    int
	Follows  int
	Posts    int
	Comments int
	Likes    int
	Places   int
	Reviews  int
	Roadmap  int
}

// Seeder populates a database with a plant-themed demo community.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory

	follows   repository.FollowRepository
	hashtags  repository.HashtagRepository
	comments  repository.CommentRepository
	reactions repository.ReactionRepository
	places    repository.PlaceRepository
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	opts = opts.withDefaults()
	return &Seeder{
		db:        db,
		opts:      opts,
		factory:   NewFactory(db, opts),
		follows:   repository.NewFollowRepository(db),
		hashtags:  repository.NewHashtagRepository(db),
		comments:  repository.NewCommentRepository(db),
		reactions: repository.NewReactionRepository(db),
		places:    repository.NewPlaceRepository(db),
	}
}

// Factory exposes the underlying factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// Run seeds users, the follow graph, posts with hashtags, comments, likes,
// places with reviews and the built-in roadmap.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Seeding %d users, %d posts, %d places...", s.opts.NumUsers, s.opts.NumPosts, s.opts.NumPlaces)
	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	sum := &Summary{}
	users, err := s.SeedUsers(s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	sum.Users = len(users)
	log.Printf("✓ %d users created", sum.Users)
	if len(users) == 0 {
		return sum, nil
	}

	if sum.Follows, err = s.SeedFollows(ctx, users); err != nil {
		return nil, fmt.Errorf("seed follows: %w", err)
	}
	log.Printf("✓ %d follows created", sum.Follows)

	posts, err := s.SeedPosts(ctx, users, s.opts.NumPosts)
	if err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	sum.Posts = len(posts)
	log.Printf("✓ %d posts created", sum.Posts)

	if sum.Comments, sum.Likes, err = s.SeedEngagement(ctx, users, posts); err != nil {
		return nil, fmt.Errorf("seed engagement: %w", err)
	}
	log.Printf("✓ %d comments, %d likes created", sum.Comments, sum.Likes)

	if sum.Places, sum.Reviews, err = s.SeedPlaces(ctx, users, s.opts.NumPlaces); err != nil {
		return nil, fmt.Errorf("seed places: %w", err)
	}
	log.Printf("✓ %d places, %d reviews created", sum.Places, sum.Reviews)

	if sum.Roadmap, err = Roadmap(s.db); err != nil {
		return nil, fmt.Errorf("seed roadmap: %w", err)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

// ClearAll removes every row from the application tables. The migration
// log is kept.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(`TRUNCATE TABLE roadmap_votes, roadmap_items, user_mutes, user_blocks,
			moderation_reports, notifications, place_favorites, place_reviews, places,
			post_hashtags, hashtags, follows, reactions, comments, posts, subscriptions, users
			RESTART IDENTITY CASCADE`).Error
	}

	all := database.PersistentModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedUsers creates count users. Every account uses DefaultPassword.
func (s *Seeder) SeedUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			// username collisions are possible with fake data
			log.Printf("skip user: %v", err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// SeedFollows gives every user up to FollowsPerUser random followees.
func (s *Seeder) SeedFollows(ctx context.Context, users []*models.User) (int, error) {
	if s.opts.DryRun || len(users) < 2 {
		return 0, nil
	}
	created := 0
	for _, u := range users {
		for i := 0; i < s.opts.FollowsPerUser; i++ {
			other := users[s.factory.rnd.Intn(len(users))]
			if other.ID == u.ID {
				continue
			}
			ok, err := s.follows.Follow(ctx, u.ID, other.ID)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

// SeedPosts creates count posts spread over users and links their hashtags.
func (s *Seeder) SeedPosts(ctx context.Context, users []*models.User, count int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[s.factory.rnd.Intn(len(users))]
		post, err := s.factory.CreatePost(author)
		if err != nil {
			return posts, err
		}
		if !s.opts.DryRun {
			post.EngagementScore = service.RelevancyScore(post, post.CreatedAt)
			if err := s.db.Model(post).Update("engagement_score", post.EngagementScore).Error; err != nil {
				return posts, err
			}
			if err := s.hashtags.LinkPost(ctx, post.ID, service.ExtractHashtags(post.Content)); err != nil {
				return posts, err
			}
		}
		posts = append(posts, post)
		if i > 0 && i%100 == 0 {
			log.Printf("Created %d posts...", i)
		}
	}
	return posts, nil
}

// SeedEngagement adds a few comments and likes to every post through the
// repositories so the denormalized counters stay correct.
func (s *Seeder) SeedEngagement(ctx context.Context, users []*models.User, posts []*models.Post) (comments, likes int, err error) {
	if s.opts.DryRun {
		return 0, 0, nil
	}
	for _, p := range posts {
		for i, n := 0, s.factory.rnd.Intn(3); i < n; i++ {
			author := users[s.factory.rnd.Intn(len(users))]
			c := s.factory.BuildComment(author, p)
			if err := s.comments.Create(ctx, c); err != nil {
				return comments, likes, err
			}
			comments++
		}
		for i, n := 0, s.factory.rnd.Intn(len(users)+1); i < n; i++ {
			liker := users[s.factory.rnd.Intn(len(users))]
			created, err := s.reactions.React(ctx, liker.ID, models.TargetPost, p.ID, models.ReactionLike, false)
			if err != nil {
				return comments, likes, err
			}
			if created {
				likes++
			}
		}
	}
	return comments, likes, nil
}

// SeedPlaces creates count places around the configured center, each with
// a handful of reviews.
func (s *Seeder) SeedPlaces(ctx context.Context, users []*models.User, count int) (places, reviews int, err error) {
	for i := 0; i < count; i++ {
		creator := users[s.factory.rnd.Intn(len(users))]
		place, err := s.factory.CreatePlace(creator, s.opts.CenterLat, s.opts.CenterLng, s.opts.SpreadKm)
		if err != nil {
			return places, reviews, err
		}
		places++
		if s.opts.DryRun {
			continue
		}

		for j, n := 0, s.factory.rnd.Intn(4); j < n; j++ {
			reviewer := users[s.factory.rnd.Intn(len(users))]
			err := s.places.CreateReview(ctx, s.factory.BuildReview(reviewer, place))
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeConflict {
				continue
			}
			if err != nil {
				return places, reviews, err
			}
			reviews++
		}
		if _, err := s.places.AddFavorite(ctx, creator.ID, place.ID); err != nil {
			return places, reviews, err
		}
	}
	return places, reviews, nil
}
