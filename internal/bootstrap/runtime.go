// Package bootstrap wires the process-wide runtime shared by the server and
// the operator commands.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"plantspack/internal/cache"
	"plantspack/internal/config"
	"plantspack/internal/database"
	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedRoadmap bool
}

// InitRuntime connects to DB and Redis and optionally seeds the built-in
// roadmap. Redis is optional; the returned client is nil when unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedRoadmap {
		created, err := seed.Roadmap(db)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in roadmap: %w", err)
		}
		if created > 0 {
			log.Printf("seeded %d built-in roadmap items", created)
		}
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes the DEV_ROOT_* account in
// development. The account is an admin on the premium tier. An existing
// account keeps its password.
func EnsureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if cfg.Env != "development" || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@plantspack.local"
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	var rootID uint
	err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		res := tx.Where("LOWER(email) = ?", email).Limit(1).Find(&root)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hashed),
				IsAdmin:  true,
				Tier:     models.TierPremium,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		} else if err := tx.Model(&models.User{}).Where("id = ?", root.ID).
			Updates(map[string]any{"is_admin": true, "is_banned": false}).Error; err != nil {
			return err
		}

		rootID = root.ID
		return repository.UpsertSubscriptionTx(tx, &models.Subscription{
			UserID: root.ID,
			Tier:   models.TierPremium,
			Status: models.SubscriptionActive,
		})
	})
	if err != nil {
		return err
	}
	cache.InvalidateUser(context.Background(), rootID)

	log.Printf("development root admin ensured for user ID %d (%s)", rootID, email)
	return nil
}
