package models

import (
	"time"

	"gorm.io/gorm"
)

// PostVisibility controls who can see a post.
type PostVisibility string

const (
	VisibilityPublic    PostVisibility = "public"
	VisibilityFollowers PostVisibility = "followers"
)

// MaxPostImages is the number of image URLs a post may carry.
const MaxPostImages = 4

// Post represents a post in the PlantsPack feed.
type Post struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	ImageURLs  []string       `gorm:"serializer:json" json:"image_urls"`
	VideoURL   string         `json:"video_url,omitempty"`
	Visibility PostVisibility `gorm:"size:20;not null;default:public;index" json:"visibility"`
	PlaceID    *uint          `gorm:"index" json:"place_id,omitempty"`
	// Counters are maintained by the repositories alongside the edge rows.
	LikesCount      int64   `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount   int64   `gorm:"not null;default:0" json:"comments_count"`
	EngagementScore float64 `gorm:"not null;default:0;index" json:"engagement_score"`
	// Liked indicates whether the current requesting user reacted to this post (computed)
	Liked     bool           `gorm:"-" json:"liked"`
	Hashtags  []string       `gorm:"-" json:"hashtags,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Comment is a reply to a post, optionally threaded under another comment.
type Comment struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	PostID     uint           `gorm:"not null;index" json:"post_id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ParentID   *uint          `gorm:"index" json:"parent_id,omitempty"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	LikesCount int64          `gorm:"not null;default:0" json:"likes_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
