package models

import "time"

// ReactionType is the kind of reaction a user leaves on a post or comment.
type ReactionType string

const (
	ReactionLike      ReactionType = "like"
	ReactionLove      ReactionType = "love"
	ReactionHelpful   ReactionType = "helpful"
	ReactionInspiring ReactionType = "inspiring"
)

// Valid reports whether t is a supported reaction.
func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLike, ReactionLove, ReactionHelpful, ReactionInspiring:
		return true
	}
	return false
}

// Reaction target types.
const (
	TargetPost    = "post"
	TargetComment = "comment"
)

// Reaction is a like (or richer reaction) on a post or comment.
// A user holds at most one reaction per target.
type Reaction struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	UserID     uint         `gorm:"not null;uniqueIndex:idx_reaction_user_target" json:"user_id"`
	TargetType string       `gorm:"size:20;not null;uniqueIndex:idx_reaction_user_target;index:idx_reaction_target" json:"target_type"`
	TargetID   uint         `gorm:"not null;uniqueIndex:idx_reaction_user_target;index:idx_reaction_target" json:"target_id"`
	Type       ReactionType `gorm:"size:20;not null;default:like" json:"type"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Follow is a directed follower -> following edge.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;index;uniqueIndex:idx_follow_edge" json:"follower_id"`
	FollowingID uint      `gorm:"not null;index;uniqueIndex:idx_follow_edge" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Hashtag is a normalized, lowercase tag.
type Hashtag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Tag       string    `gorm:"uniqueIndex;size:50;not null" json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

// PostHashtag links a post to a hashtag.
type PostHashtag struct {
	PostID    uint      `gorm:"primaryKey" json:"post_id"`
	HashtagID uint      `gorm:"primaryKey;index" json:"hashtag_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TrendingHashtag is an aggregate row for the trending endpoint.
type TrendingHashtag struct {
	Tag       string `json:"tag"`
	PostCount int64  `json:"post_count"`
}

// RoadmapStatus tracks the delivery state of a roadmap item.
type RoadmapStatus string

const (
	RoadmapPlanned    RoadmapStatus = "planned"
	RoadmapInProgress RoadmapStatus = "in_progress"
	RoadmapDone       RoadmapStatus = "done"
)

// Valid reports whether s is a known roadmap status.
func (s RoadmapStatus) Valid() bool {
	switch s {
	case RoadmapPlanned, RoadmapInProgress, RoadmapDone:
		return true
	}
	return false
}

// RoadmapItem is a feature users can vote on.
type RoadmapItem struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"size:200;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Status      RoadmapStatus `gorm:"size:20;not null;default:planned;index" json:"status"`
	CreatedBy   uint          `gorm:"not null" json:"created_by"`
	VotesCount  int64         `gorm:"not null;default:0" json:"votes_count"`
	Voted       bool          `gorm:"-" json:"voted"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RoadmapVote is one user's vote on one roadmap item.
type RoadmapVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ItemID    uint      `gorm:"not null;uniqueIndex:idx_roadmap_vote" json:"item_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_roadmap_vote;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
