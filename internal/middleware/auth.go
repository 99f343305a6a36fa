// Package middleware provides request-scoped HTTP middleware: auth token
// parsing, structured logging, rate limiting, metrics and tracing.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// SessionCookie carries the session JWT for browser clients.
	SessionCookie = "pp_session"
	// TokenIssuer and TokenAudience are stamped on every session token.
	TokenIssuer   = "plantspack-api"
	TokenAudience = "plantspack-client"
	// SessionTTL is the lifetime of a session token.
	SessionTTL = 7 * 24 * time.Hour
)

var (
	// ErrNoToken is returned when the request carries neither cookie nor bearer header.
	ErrNoToken = errors.New("authentication required")
	// ErrInvalidToken is returned for malformed, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// SessionClaims is the validated content of a session token.
type SessionClaims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// TokenFromRequest extracts the session token from the Authorization header,
// falling back to the pp_session cookie.
func TokenFromRequest(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie, nil
	}
	return "", ErrNoToken
}

// IssueToken signs a session token for userID.
func IssueToken(secret string, userID uint, username string, now time.Time) (string, SessionClaims, error) {
	exp := now.Add(SessionTTL)
	jti := fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString()[:8])
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      jti,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", SessionClaims{}, err
	}
	return signed, SessionClaims{UserID: userID, Username: username, JTI: jti, ExpiresAt: exp}, nil
}

// ParseToken validates signature, expiry, issuer and audience and returns the claims.
func ParseToken(secret, tokenString string) (SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return SessionClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return SessionClaims{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return SessionClaims{}, ErrInvalidToken
	}
	userIDVal, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userIDVal == 0 {
		return SessionClaims{}, ErrInvalidToken
	}

	out := SessionClaims{UserID: uint(userIDVal)}
	if username, ok := claims["username"].(string); ok {
		out.Username = username
	}
	if jti, ok := claims["jti"].(string); ok {
		out.JTI = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
