// Command main runs the database seeder for PlantsPack.
package main

import (
	"context"
	"flag"
	"log"

	"plantspack/internal/config"
	"plantspack/internal/database"
	"plantspack/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	numPlaces := flag.Int("places", 40, "Number of places to create")
	follows := flag.Int("follows", 8, "Maximum follows per user")
	lat := flag.Float64("lat", 52.52, "Latitude places are scattered around")
	lng := flag.Float64("lng", 13.405, "Longitude places are scattered around")
	spread := flag.Float64("spread-km", 15, "Radius in km for generated places")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, %d places, clean=%v\n", *numUsers, *numPosts, *numPlaces, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:       *numUsers,
		NumPosts:       *numPosts,
		NumPlaces:      *numPlaces,
		FollowsPerUser: *follows,
		ShouldClean:    *shouldClean && !*dryRun,
		DryRun:         *dryRun,
		CenterLat:      *lat,
		CenterLng:      *lng,
		SpreadKm:       *spread,
	})
	sum, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %+v", *sum)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
