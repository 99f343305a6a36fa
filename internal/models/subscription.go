package models

import (
	"strings"
	"time"
)

// SubscriptionTier is the paid plan a user is on.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierMedium  SubscriptionTier = "medium"
	TierPremium SubscriptionTier = "premium"
)

// SubscriptionStatus mirrors the billing provider's lifecycle.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// ParseTier normalizes a tier name. Unknown names report false.
func ParseTier(raw string) (SubscriptionTier, bool) {
	t := SubscriptionTier(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TierFree, TierMedium, TierPremium:
		return t, true
	}
	return "", false
}

// Rank orders tiers so that higher plans include lower ones.
func (t SubscriptionTier) Rank() int {
	switch t {
	case TierMedium:
		return 1
	case TierPremium:
		return 2
	default:
		return 0
	}
}

// PostCharLimit is the maximum post length allowed on this tier.
func (t SubscriptionTier) PostCharLimit() int {
	switch t {
	case TierMedium:
		return 1000
	case TierPremium:
		return 5000
	default:
		return 500
	}
}

// Subscription stores the billing state for one user.
type Subscription struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	UserID           uint               `gorm:"uniqueIndex;not null" json:"user_id"`
	Tier             SubscriptionTier   `gorm:"size:20;not null;default:free" json:"tier"`
	Status           SubscriptionStatus `gorm:"size:20;not null;default:active" json:"status"`
	ExternalID       string             `gorm:"size:120;index" json:"external_id,omitempty"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
