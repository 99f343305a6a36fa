package seed

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"plantspack/internal/database"
	"plantspack/internal/models"
	"plantspack/internal/service"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func TestSeeder_RunPopulatesCommunity(t *testing.T) {
	db := openSeedDB(t)
	s := NewSeeder(db, Options{NumUsers: 6, NumPosts: 12, NumPlaces: 4, SkipBcrypt: true})

	sum, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := count(t, db, &models.User{}); got != int64(sum.Users) || got == 0 {
		t.Fatalf("expected %d users, got %d", sum.Users, got)
	}
	if got := count(t, db, &models.Post{}); got != 12 {
		t.Fatalf("expected 12 posts, got %d", got)
	}
	if got := count(t, db, &models.Follow{}); got != int64(sum.Follows) {
		t.Fatalf("expected %d follows, got %d", sum.Follows, got)
	}
	if got := count(t, db, &models.PostHashtag{}); got == 0 {
		t.Fatal("expected hashtags to be linked to posts")
	}
	if got := count(t, db, &models.Place{}); got != 4 {
		t.Fatalf("expected 4 places, got %d", got)
	}
	if got := count(t, db, &models.RoadmapItem{}); got != int64(len(BuiltInRoadmap)) {
		t.Fatalf("expected %d roadmap items, got %d", len(BuiltInRoadmap), got)
	}

	var likes, comments int64
	if err := db.Model(&models.Post{}).Select("COALESCE(SUM(likes_count), 0)").Scan(&likes).Error; err != nil {
		t.Fatalf("sum likes: %v", err)
	}
	if err := db.Model(&models.Post{}).Select("COALESCE(SUM(comments_count), 0)").Scan(&comments).Error; err != nil {
		t.Fatalf("sum comments: %v", err)
	}
	if likes != count(t, db, &models.Reaction{}) || likes != int64(sum.Likes) {
		t.Fatalf("likes counter %d does not match %d reaction rows", likes, sum.Likes)
	}
	if comments != count(t, db, &models.Comment{}) || comments != int64(sum.Comments) {
		t.Fatalf("comments counter %d does not match %d comment rows", comments, sum.Comments)
	}

	var places []models.Place
	if err := db.Find(&places).Error; err != nil {
		t.Fatalf("load places: %v", err)
	}
	for _, p := range places {
		var reviews int64
		db.Model(&models.PlaceReview{}).Where("place_id = ?", p.ID).Count(&reviews)
		if p.ReviewCount != reviews {
			t.Fatalf("place %d review_count=%d, rows=%d", p.ID, p.ReviewCount, reviews)
		}
		if math.Abs(p.Latitude-52.52) > 1 || math.Abs(p.Longitude-13.405) > 1 {
			t.Fatalf("place %d is far from the default center: %v,%v", p.ID, p.Latitude, p.Longitude)
		}
	}
}

func TestSeeder_ClearAllKeepsSchema(t *testing.T) {
	db := openSeedDB(t)
	s := NewSeeder(db, Options{NumUsers: 3, NumPosts: 3, NumPlaces: 1, SkipBcrypt: true})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, m := range database.PersistentModels() {
		if got := count(t, db, m); got != 0 {
			t.Fatalf("expected %T to be empty, got %d rows", m, got)
		}
	}
	if got := count(t, db, &database.MigrationLog{}); got == 0 {
		t.Fatal("migration log should survive a clear")
	}
}

func TestRoadmap_Idempotent(t *testing.T) {
	db := openSeedDB(t)

	created, err := Roadmap(db)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if created != len(BuiltInRoadmap) {
		t.Fatalf("expected %d created, got %d", len(BuiltInRoadmap), created)
	}

	if err := db.Model(&models.RoadmapItem{}).Where("title = ?", "Recipe collections").
		Update("status", models.RoadmapInProgress).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	created, err = Roadmap(db)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no new items, got %d", created)
	}

	var item models.RoadmapItem
	if err := db.Where("title = ?", "Recipe collections").First(&item).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if item.Status != models.RoadmapInProgress {
		t.Fatalf("existing status overwritten: %s", item.Status)
	}
}

func TestFactory_DryRunAssignsSyntheticIDs(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true, MaxDays: 7})

	u, err := f.CreateUser()
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 || u.Password != DefaultPassword {
		t.Fatalf("unexpected dry-run user: %+v", u)
	}

	p, err := f.CreatePost(u)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if p.ID == 0 || p.ID == u.ID {
		t.Fatalf("expected a fresh synthetic id, got %d", p.ID)
	}
	if len(service.ExtractHashtags(p.Content)) == 0 {
		t.Fatalf("expected hashtags in %q", p.Content)
	}
	if p.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be spread")
	}
}

func TestFactory_BuildPlaceStaysInsideSpread(t *testing.T) {
	f := NewFactory(nil, Options{})
	creator := &models.User{ID: 1}
	for i := 0; i < 50; i++ {
		p := f.BuildPlace(creator, 40.0, -3.7, 5)
		if math.Abs(p.Latitude-40.0) > 5.0/111.0+1e-9 || math.Abs(p.Longitude+3.7) > 5.0/111.0+1e-9 {
			t.Fatalf("place outside spread: %v,%v", p.Latitude, p.Longitude)
		}
		if !p.Category.Valid() || !p.VeganLevel.Valid() {
			t.Fatalf("invalid enum values: %+v", p)
		}
	}
}
