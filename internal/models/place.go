package models

import (
	"time"

	"gorm.io/gorm"
)

// PlaceCategory groups places on the map.
type PlaceCategory string

const (
	PlaceEat       PlaceCategory = "eat"
	PlaceHotel     PlaceCategory = "hotel"
	PlaceStore     PlaceCategory = "store"
	PlaceEvent     PlaceCategory = "event"
	PlaceCommunity PlaceCategory = "community"
	PlaceOther     PlaceCategory = "other"
)

// Valid reports whether c is a known category.
func (c PlaceCategory) Valid() bool {
	switch c {
	case PlaceEat, PlaceHotel, PlaceStore, PlaceEvent, PlaceCommunity, PlaceOther:
		return true
	}
	return false
}

// VeganLevel describes how plant-based a place is.
type VeganLevel string

const (
	FullyVegan    VeganLevel = "fully_vegan"
	VeganFriendly VeganLevel = "vegan_friendly"
)

// Valid reports whether l is a known vegan level.
func (l VeganLevel) Valid() bool {
	return l == FullyVegan || l == VeganFriendly
}

// Place is a community-submitted location on the map.
type Place struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedBy     uint           `gorm:"not null;index" json:"created_by"`
	Creator       *User          `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Name          string         `gorm:"size:200;not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Category      PlaceCategory  `gorm:"size:20;not null;index" json:"category"`
	VeganLevel    VeganLevel     `gorm:"size:20;not null;default:vegan_friendly" json:"vegan_level"`
	Latitude      float64        `gorm:"not null;index:idx_place_coords" json:"latitude"`
	Longitude     float64        `gorm:"not null;index:idx_place_coords" json:"longitude"`
	Address       string         `json:"address"`
	Website       string         `json:"website,omitempty"`
	Phone         string         `gorm:"size:40" json:"phone,omitempty"`
	Tags          []string       `gorm:"serializer:json" json:"tags"`
	AverageRating float64        `gorm:"not null;default:0" json:"average_rating"`
	ReviewCount   int64          `gorm:"not null;default:0" json:"review_count"`
	DistanceKm    float64        `gorm:"-" json:"distance_km,omitempty"`
	IsFavorite    bool           `gorm:"-" json:"is_favorite"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// PlaceReview is a rated review. One per user per place.
type PlaceReview struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PlaceID   uint      `gorm:"not null;uniqueIndex:idx_review_user_place;index" json:"place_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_review_user_place" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Rating    int       `gorm:"not null" json:"rating"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaceFavorite bookmarks a place for a user.
type PlaceFavorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_place" json:"user_id"`
	PlaceID   uint      `gorm:"not null;uniqueIndex:idx_favorite_user_place;index" json:"place_id"`
	CreatedAt time.Time `json:"created_at"`
}
