package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	UserKeyPrefix         = "user:%d"
	PostKeyPrefix         = "post:%d"
	PlaceKeyPrefix        = "place:%d"
	DraftKeyPrefix        = "draft:post:%d"
	GeocodeKeyPrefix      = "geocode:%s:%s"
	TrendingKeyPrefix     = "hashtags:trending:%d"
	UnreadCountKeyPrefix  = "notifications:unread:%d"
	WSTicketKeyPrefix     = "ws_ticket:%s"
	TokenBlacklistPrefix  = "blacklist:%s"
	BillingEventKeyPrefix = "billing:event:%s"
	RoadmapListKey        = "roadmap:items"
	AdminStatsKey         = "admin:stats"
	SubscriptionKeyPrefix = "subscription:%d"
)

const (
	UserTTL         = 5 * time.Minute
	PostTTL         = 30 * time.Minute
	PlaceTTL        = 10 * time.Minute
	DraftTTL        = 7 * 24 * time.Hour
	GeocodeTTL      = 24 * time.Hour
	TrendingTTL     = 5 * time.Minute
	UnreadCountTTL  = time.Minute
	WSTicketTTL     = 60 * time.Second
	BillingEventTTL = 72 * time.Hour
	RoadmapTTL      = 2 * time.Minute
	AdminStatsTTL   = 30 * time.Second
	SubscriptionTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func PlaceKey(placeID uint) string {
	return fmt.Sprintf(PlaceKeyPrefix, placeID)
}

func DraftKey(userID uint) string {
	return fmt.Sprintf(DraftKeyPrefix, userID)
}

func SubscriptionKey(userID uint) string {
	return fmt.Sprintf(SubscriptionKeyPrefix, userID)
}

func TrendingKey(days int) string {
	return fmt.Sprintf(TrendingKeyPrefix, days)
}

func UnreadCountKey(userID uint) string {
	return fmt.Sprintf(UnreadCountKeyPrefix, userID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func TokenBlacklistKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistPrefix, jti)
}

func BillingEventKey(eventID string) string {
	return fmt.Sprintf(BillingEventKeyPrefix, eventID)
}

// GeocodeKey hashes the normalized query so arbitrary user text never ends up in key names.
func GeocodeKey(kind, query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf(GeocodeKeyPrefix, kind, hex.EncodeToString(sum[:]))
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID), SubscriptionKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidatePlace(ctx context.Context, placeID uint) {
	Invalidate(ctx, PlaceKey(placeID))
}
