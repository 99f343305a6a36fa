// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a PlantsPack member.
// Rows are never hard-deleted; account deletion anonymizes them in place.
type User struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Username     string           `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string           `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password     string           `gorm:"not null" json:"-"`
	Bio          string           `gorm:"size:500" json:"bio"`
	Avatar       string           `json:"avatar"`
	Location     string           `gorm:"size:120" json:"location"`
	Website      string           `json:"website"`
	IsAdmin      bool             `gorm:"default:false" json:"is_admin"`
	IsBanned     bool             `gorm:"default:false;index" json:"is_banned"`
	BannedAt     *time.Time       `json:"banned_at,omitempty"`
	Tier         SubscriptionTier `gorm:"size:20;default:free" json:"tier"`
	AnonymizedAt *time.Time       `gorm:"index" json:"anonymized_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	FollowersCount int64 `gorm:"-" json:"followers_count"`
	FollowingCount int64 `gorm:"-" json:"following_count"`
	PostsCount     int64 `gorm:"-" json:"posts_count"`
	IsFollowing    bool  `gorm:"-" json:"is_following"`
}

// IsAnonymized reports whether the account has been deleted by its owner or an admin.
func (u *User) IsAnonymized() bool {
	return u.AnonymizedAt != nil
}

// PublicView strips private fields before the user is shown to someone else.
func (u User) PublicView() User {
	u.Email = ""
	return u
}
