package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/middleware"
	"plantspack/internal/models"
	"plantspack/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new account on the free tier and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Signup request"
// @Success 201 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	resp, err := s.startSession(c, user)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate and receive a session token, also set as the pp_session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} authResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	resp, err := s.startSession(c, user)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) startSession(c *fiber.Ctx, user *models.User) (*authResponse, error) {
	if s.config.JWTSecret == "" {
		return nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}
	token, claims, err := middleware.IssueToken(s.config.JWTSecret, user.ID, user.Username, time.Now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	s.setSessionCookie(c, token, claims.ExpiresAt)
	return &authResponse{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current session token and clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims, err := s.session(c); err == nil {
		if rerr := s.revoke(c.UserContext(), claims); rerr != nil {
			return mapServiceError(c, models.NewUnavailableError("Could not revoke session", rerr))
		}
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description Returns a single-use ticket valid for 60 seconds, passed as ?ticket= on /api/ws
// @Tags realtime
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return mapServiceError(c, models.NewUnavailableError("Realtime is unavailable", nil))
	}
	ticket := uuid.NewString()
	userID := currentUserID(c)
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket),
		strconv.FormatUint(uint64(userID), 10), cache.WSTicketTTL).Err(); err != nil {
		return mapServiceError(c, models.NewUnavailableError("Realtime is unavailable", err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

// AuthRequired returns the authentication middleware. It accepts a
// WebSocket ticket, a bearer token or the session cookie, and rejects
// revoked tokens and suspended or deleted accounts.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		if ticket := c.Query("ticket"); ticket != "" {
			if userID, ok := s.consumeWSTicket(c.UserContext(), ticket); ok {
				return s.authenticated(c, userID)
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		claims, err := s.session(c)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, middleware.ErrNoToken) {
				msg = "Authorization required"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msg))
		}
		return s.authenticated(c, claims.UserID)
	}
}

func (s *Server) authenticated(c *fiber.Ctx, userID uint) error {
	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Account no longer exists"))
		}
		return mapServiceError(c, err)
	}
	if user.IsAnonymized() {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Account no longer exists"))
	}
	if user.IsBanned {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Your account is suspended"))
	}

	c.Locals("userID", userID)
	c.Locals("isAdmin", user.IsAdmin)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
	return c.Next()
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if admin, _ := c.Locals("isAdmin").(bool); !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}
