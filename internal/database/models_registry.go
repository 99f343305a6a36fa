package database

import "plantspack/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Subscription{},
		&models.Post{},
		&models.Comment{},
		&models.Reaction{},
		&models.Follow{},
		&models.Hashtag{},
		&models.PostHashtag{},
		&models.Place{},
		&models.PlaceReview{},
		&models.PlaceFavorite{},
		&models.Notification{},
		&models.ModerationReport{},
		&models.UserBlock{},
		&models.UserMute{},
		&models.RoadmapItem{},
		&models.RoadmapVote{},
	}
}
