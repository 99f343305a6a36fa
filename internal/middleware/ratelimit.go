package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"plantspack/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

// Policy is a named request budget for one kind of action.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
	Fail   FailPolicy
}

// Budgets per PlantsPack action. Auth budgets fail closed.
var (
	SignupLimit        = Policy{Name: "signup", Limit: 3, Window: 10 * time.Minute, Fail: FailClosed}
	LoginLimit         = Policy{Name: "login", Limit: 10, Window: 5 * time.Minute, Fail: FailClosed}
	PostSearchLimit    = Policy{Name: "post_search", Limit: 20, Window: time.Minute}
	UserSearchLimit    = Policy{Name: "user_search", Limit: 30, Window: time.Minute}
	ComposeLimit       = Policy{Name: "compose", Limit: 10, Window: time.Minute}
	CommentLimit       = Policy{Name: "comment", Limit: 20, Window: time.Minute}
	FollowLimit        = Policy{Name: "follow", Limit: 60, Window: time.Minute}
	AddPlaceLimit      = Policy{Name: "add_place", Limit: 10, Window: time.Hour}
	GeocodeLimit       = Policy{Name: "geocode", Limit: 30, Window: time.Minute}
	ContentCheckLimit  = Policy{Name: "content_check", Limit: 30, Window: time.Minute}
	MediaUploadLimit   = Policy{Name: "media_upload", Limit: 30, Window: 10 * time.Minute}
	ReportLimit        = Policy{Name: "report", Limit: 10, Window: 10 * time.Minute}
	AccountExportLimit = Policy{Name: "account_export", Limit: 5, Window: time.Hour}
)

// rateLimitBypassed is true for environments that must never be throttled.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func rateLimitKey(policy, subject string) string {
	return fmt.Sprintf("rl:%s:%s", policy, subject)
}

// CheckRateLimit counts one hit against subject's budget under p. It reports
// whether the hit is allowed and, when it is not, how long until the window
// resets.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, p Policy, subject string) (bool, time.Duration, error) {
	if rateLimitBypassed() {
		return true, 0, nil
	}
	if rdb == nil {
		return false, 0, errors.New("redis client is nil")
	}

	key := rateLimitKey(p.Name, subject)
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, p.Window)
	}
	if cnt <= int64(p.Limit) {
		return true, 0, nil
	}
	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = p.Window
	}
	return false, ttl, nil
}

// RateLimit enforces p per signed-in member, or per client IP for guests.
func RateLimit(rdb *redis.Client, p Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		subject := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			subject = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		allowed, retry, err := CheckRateLimit(ctx, rdb, p, subject)
		if err != nil {
			Logger.WarnContext(ctx, "rate limit store unavailable",
				slog.String("policy", p.Name),
				slog.Bool("fail_closed", p.Fail == FailClosed),
				slog.String("error", err.Error()),
			)
			if p.Fail == FailClosed {
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					models.NewUnavailableError("Please try again in a moment", err))
			}
			return c.Next()
		}

		if !allowed {
			if retry > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Round(time.Second).Seconds())))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fmt.Sprintf("Too many %s requests, slow down", p.Name),
				"code":  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
