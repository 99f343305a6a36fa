// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"plantspack/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account can log in with.
const DefaultPassword = "password123"

var (
	seedHashtags = []string{
		"vegan", "plantbased", "veganrecipes", "whatveganseat", "meatless",
		"crueltyfree", "zerowaste", "veganfood", "govegan", "plantpower",
	}

	seedTags = []string{
		"gluten-free options", "outdoor seating", "organic", "dog friendly",
		"wifi", "takeaway", "raw food", "brunch", "late night",
	}
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
	// hash shared by every seeded user
	passwordHash string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	// #nosec G404: acceptable for seeding
	return &Factory{db: db, opts: opts, rnd: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) password() string {
	if f.passwordHash != "" {
		return f.passwordHash
	}
	if f.opts.SkipBcrypt {
		f.passwordHash = DefaultPassword
		return f.passwordHash
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("seed: bcrypt failed, storing plain password: %v", err)
		f.passwordHash = DefaultPassword
		return f.passwordHash
	}
	f.passwordHash = string(hashed)
	return f.passwordHash
}

// createdAtSpread returns a timestamp somewhere inside the last MaxDays days.
func (f *Factory) createdAtSpread() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.rnd.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) persist(value any, id *uint, label string) error {
	if f.opts.DryRun {
		f.nextID++
		*id = f.nextID
		log.Printf("[dry-run] %s id=%d (no DB write)", label, *id)
		return nil
	}
	return f.db.Create(value).Error
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	username := strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999))
	if len(username) > 50 {
		username = username[:50]
	}
	user := &models.User{
		Username: username,
		Email:    username + "@plantspack.dev",
		Password: f.password(),
		Bio:      fmt.Sprintf("%s lover. %s", gofakeit.Vegetable(), gofakeit.Sentence(8)),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Location: gofakeit.City(),
		Tier:     models.TierFree,
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.persist(user, &user.ID, "CreateUser "+user.Username); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post with one to three hashtags in its content
// but does not persist it.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	var tags []string
	for i, n := 0, 1+f.rnd.Intn(3); i < n; i++ {
		tags = append(tags, "#"+seedHashtags[f.rnd.Intn(len(seedHashtags))])
	}
	content := fmt.Sprintf("Made %s with %s today. %s %s",
		strings.ToLower(gofakeit.Vegetable()), strings.ToLower(gofakeit.Fruit()),
		gofakeit.Sentence(10), strings.Join(tags, " "))

	post := &models.Post{
		UserID:     user.ID,
		Content:    content,
		Visibility: models.VisibilityPublic,
		CreatedAt:  f.createdAtSpread(),
	}
	if f.rnd.Float32() < 0.4 {
		post.ImageURLs = []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())}
	}
	if f.rnd.Float32() < 0.15 {
		post.Visibility = models.VisibilityFollowers
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost builds and persists a post for the given user.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)
	if err := f.persist(post, &post.ID, "CreatePost"); err != nil {
		return nil, err
	}
	return post, nil
}

// BuildComment constructs a sample `models.Comment` on the provided post
// authored by the provided user but does not persist it.
func (f *Factory) BuildComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) *models.Comment {
	comment := &models.Comment{
		Content: fmt.Sprintf("%s #%s", gofakeit.Sentence(8), seedHashtags[f.rnd.Intn(len(seedHashtags))]),
		UserID:  user.ID,
		PostID:  post.ID,
	}

	for _, override := range overrides {
		override(comment)
	}
	return comment
}

// BuildPlace constructs a place scattered around (lat, lng) within roughly
// spreadKm kilometres but does not persist it.
func (f *Factory) BuildPlace(creator *models.User, lat, lng, spreadKm float64, overrides ...func(*models.Place)) *models.Place {
	categories := []models.PlaceCategory{
		models.PlaceEat, models.PlaceEat, models.PlaceEat,
		models.PlaceStore, models.PlaceHotel, models.PlaceEvent, models.PlaceCommunity,
	}
	// one degree of latitude is ~111km
	delta := spreadKm / 111.0

	level := models.VeganFriendly
	if f.rnd.Float32() < 0.5 {
		level = models.FullyVegan
	}

	place := &models.Place{
		CreatedBy:   creator.ID,
		Name:        fmt.Sprintf("The %s %s", gofakeit.Fruit(), gofakeit.RandomString([]string{"Kitchen", "Garden", "Table", "Market", "Café", "Collective"})),
		Description: gofakeit.Sentence(14),
		Category:    categories[f.rnd.Intn(len(categories))],
		VeganLevel:  level,
		Latitude:    lat + gofakeit.Float64Range(-delta, delta),
		Longitude:   lng + gofakeit.Float64Range(-delta, delta),
		Address:     gofakeit.Street() + ", " + gofakeit.City(),
		Website:     gofakeit.URL(),
		Phone:       gofakeit.Phone(),
		Tags:        []string{seedTags[f.rnd.Intn(len(seedTags))], seedTags[f.rnd.Intn(len(seedTags))]},
	}

	for _, override := range overrides {
		override(place)
	}
	return place
}

// CreatePlace builds and persists a place.
func (f *Factory) CreatePlace(creator *models.User, lat, lng, spreadKm float64, overrides ...func(*models.Place)) (*models.Place, error) {
	place := f.BuildPlace(creator, lat, lng, spreadKm, overrides...)
	if err := f.persist(place, &place.ID, "CreatePlace "+place.Name); err != nil {
		return nil, err
	}
	return place, nil
}

// BuildReview returns a review skewed towards good ratings.
func (f *Factory) BuildReview(user *models.User, place *models.Place) *models.PlaceReview {
	return &models.PlaceReview{
		PlaceID: place.ID,
		UserID:  user.ID,
		Rating:  []int{3, 4, 4, 5, 5, 5}[f.rnd.Intn(6)],
		Content: gofakeit.Sentence(12),
	}
}
