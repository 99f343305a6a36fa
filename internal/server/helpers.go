package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"plantspack/internal/cache"
	"plantspack/internal/database"
	"plantspack/internal/middleware"
	"plantspack/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// pinPrimaryOnWrites keeps every read of a mutating request on the primary.
func pinPrimaryOnWrites(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
	default:
		c.SetUserContext(database.WithPrimary(c.UserContext()))
	}
	return c.Next()
}

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "reviewId" -> "review ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parseBody decodes the JSON body into dest, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// statusFor maps an AppError code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeBlocked:
		return fiber.StatusUnprocessableEntity
	case models.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// mapServiceError writes the error returned by a service call.
func mapServiceError(c *fiber.Ctx, err error) error {
	code := models.ErrorCode(err)
	if code == "" {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "Resource not found"})
		}
		err = models.NewInternalError(err)
		code = models.CodeInternal
	}

	status := statusFor(code)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err.Error(),
		)
	}
	return models.RespondWithError(c, status, err)
}

// currentUserID returns the authenticated caller, or 0.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// session validates the request's token and checks it against the revocation list.
func (s *Server) session(c *fiber.Ctx) (middleware.SessionClaims, error) {
	token, err := middleware.TokenFromRequest(c)
	if err != nil {
		return middleware.SessionClaims{}, err
	}
	claims, err := middleware.ParseToken(s.config.JWTSecret, token)
	if err != nil {
		return middleware.SessionClaims{}, err
	}
	if claims.JTI != "" && s.redis != nil {
		revoked, rerr := s.redis.Exists(c.UserContext(), cache.TokenBlacklistKey(claims.JTI)).Result()
		if rerr == nil && revoked > 0 {
			return middleware.SessionClaims{}, middleware.ErrInvalidToken
		}
	}
	return claims, nil
}

// optionalUserID returns the caller when a valid session is present, else 0.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	claims, err := s.session(c)
	if err != nil {
		return 0
	}
	return claims.UserID
}

// revoke blacklists a token id until the token would have expired anyway.
func (s *Server) revoke(ctx context.Context, claims middleware.SessionClaims) error {
	if s.redis == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, cache.TokenBlacklistKey(claims.JTI), "1", ttl).Err()
}

// consumeWSTicket atomically redeems a single-use WebSocket ticket.
func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (uint, bool) {
	if s.redis == nil || ticket == "" {
		return 0, false
	}
	raw, err := s.redis.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "ws ticket lookup failed", "error", err.Error())
		}
		return 0, false
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || userID == 0 {
		return 0, false
	}
	return uint(userID), true
}

func (s *Server) isAdminByUserID(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("is_admin").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
