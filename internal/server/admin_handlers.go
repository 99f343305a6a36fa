package server

import (
	"strings"

	"plantspack/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAdminStats handles GET /api/admin/stats
// @Summary Dashboard counters
// @Tags admin
// @Produce json
// @Success 200 {object} service.AdminStats
// @Router /admin/stats [get]
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.adminService.Stats(c.UserContext())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(stats)
}

// GetAdminUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Param q query string false "Username or email fragment"
// @Success 200 {object} object{users=[]models.User,total=int}
// @Router /admin/users [get]
func (s *Server) GetAdminUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	users, total, err := s.adminService.ListUsers(c.UserContext(), strings.TrimSpace(c.Query("q")), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// CreateAdminUser handles POST /api/admin/users
// @Summary Create a user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,is_admin=bool,tier=string} true "User"
// @Success 201 {object} models.User
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users [post]
func (s *Server) CreateAdminUser(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		IsAdmin  bool   `json:"is_admin"`
		Tier     string `json:"tier"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.adminService.CreateUser(c.UserContext(), service.AdminCreateUserInput{
		SignupInput: service.SignupInput{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		},
		IsAdmin: req.IsAdmin,
		Tier:    req.Tier,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetAdminUserDetail handles GET /api/admin/users/:id
// @Summary User detail with reports and blocks
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.AdminUserDetail
// @Router /admin/users/{id} [get]
func (s *Server) GetAdminUserDetail(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	detail, err := s.adminService.UserDetail(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(detail)
}

// UpdateAdminUser handles PUT /api/admin/users/:id
// @Summary Change role, tier or ban state
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body object{is_admin=bool,tier=string,is_banned=bool} true "Changes"
// @Success 200 {object} models.User
// @Router /admin/users/{id} [put]
func (s *Server) UpdateAdminUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		IsAdmin *bool   `json:"is_admin"`
		Tier    *string `json:"tier"`
		Banned  *bool   `json:"is_banned"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.adminService.UpdateUser(c.UserContext(), currentUserID(c), service.AdminUpdateUserInput{
		UserID:  id,
		IsAdmin: req.IsAdmin,
		Tier:    req.Tier,
		Banned:  req.Banned,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// DeleteAdminUser handles DELETE /api/admin/users/:id
// @Summary Anonymize a user
// @Tags admin
// @Param id path int true "User ID"
// @Success 200 {object} object{message=string}
// @Router /admin/users/{id} [delete]
func (s *Server) DeleteAdminUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeleteUser(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted"})
}

// DeleteAdminPost handles DELETE /api/admin/posts/:id
// @Summary Remove any post
// @Tags admin
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Router /admin/posts/{id} [delete]
func (s *Server) DeleteAdminPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeletePost(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Configured flags and their value for me
// @Tags admin
// @Produce json
// @Success 200 {object} object{rules=object,enabled=object}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	flags, err := s.adminService.FeatureFlags(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(flags)
}
