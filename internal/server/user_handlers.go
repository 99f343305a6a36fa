package server

import (
	"plantspack/internal/models"
	"plantspack/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.Me(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update profile
// @Description Omitted fields are left unchanged
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{username=string,bio=string,avatar=string,location=string,website=string} true "Profile"
// @Success 200 {object} models.User
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username *string `json:"username"`
		Bio      *string `json:"bio"`
		Avatar   *string `json:"avatar"`
		Location *string `json:"location"`
		Website  *string `json:"website"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:   currentUserID(c),
		Username: req.Username,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
		Location: req.Location,
		Website:  req.Website,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetProfile(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary Posts by a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {array} models.Post
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	posts, err := s.postService.ListByUser(c.UserContext(), id, s.optionalUserID(c), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.JSON(posts)
}

// SearchUsers handles GET /api/users/search
// @Summary Username autocomplete
// @Description Prefix match, at most 10 results; queries under 3 characters return []
// @Tags users
// @Produce json
// @Param q query string true "Username prefix"
// @Success 200 {array} models.User
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.userService.SearchUsers(c.UserContext(), c.Query("q"))
	if err != nil {
		return mapServiceError(c, err)
	}
	if users == nil {
		users = []models.User{}
	}
	return c.JSON(users)
}

// FollowUser handles POST /api/users/:id/follow
// @Summary Follow a user
// @Tags social
// @Param id path int true "User ID"
// @Success 200 {object} service.FollowResult
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{id}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.followService.Follow(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(res)
}

// UnfollowUser handles DELETE /api/users/:id/follow
// @Summary Unfollow a user
// @Tags social
// @Param id path int true "User ID"
// @Success 200 {object} service.FollowResult
// @Router /users/{id}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.followService.Unfollow(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(res)
}

// GetFollowers handles GET /api/users/:id/followers
// @Summary Followers of a user
// @Tags social
// @Param id path int true "User ID"
// @Success 200 {array} models.User
// @Router /users/{id}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	users, err := s.followService.Followers(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:id/following
// @Summary Users a user follows
// @Tags social
// @Param id path int true "User ID"
// @Success 200 {array} models.User
// @Router /users/{id}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	users, err := s.followService.Following(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// BlockUser handles POST /api/users/:id/block
// @Summary Block a user
// @Description Removes follows in both directions and hides each user from the other
// @Tags moderation
// @Param id path int true "User ID"
// @Success 200 {object} object{blocked=bool,changed=bool}
// @Router /users/{id}/block [post]
func (s *Server) BlockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.moderationService.Block(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"blocked": true, "changed": changed})
}

// UnblockUser handles DELETE /api/users/:id/block
// @Summary Unblock a user
// @Tags moderation
// @Param id path int true "User ID"
// @Success 200 {object} object{blocked=bool,changed=bool}
// @Router /users/{id}/block [delete]
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.moderationService.Unblock(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"blocked": false, "changed": changed})
}

// MuteUser handles POST /api/users/:id/mute
// @Summary Mute a user
// @Tags moderation
// @Param id path int true "User ID"
// @Success 200 {object} object{muted=bool,changed=bool}
// @Router /users/{id}/mute [post]
func (s *Server) MuteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.moderationService.Mute(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"muted": true, "changed": changed})
}

// UnmuteUser handles DELETE /api/users/:id/mute
// @Summary Unmute a user
// @Tags moderation
// @Param id path int true "User ID"
// @Success 200 {object} object{muted=bool,changed=bool}
// @Router /users/{id}/mute [delete]
func (s *Server) UnmuteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.moderationService.Unmute(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"muted": false, "changed": changed})
}

// ListMyBlocks handles GET /api/users/me/blocks
// @Summary Users I blocked
// @Tags moderation
// @Success 200 {array} models.UserBlock
// @Router /users/me/blocks [get]
func (s *Server) ListMyBlocks(c *fiber.Ctx) error {
	blocks, err := s.moderationService.ListBlocks(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(blocks)
}

// ListMyMutes handles GET /api/users/me/mutes
// @Summary Users I muted
// @Tags moderation
// @Success 200 {array} models.UserMute
// @Router /users/me/mutes [get]
func (s *Server) ListMyMutes(c *fiber.Ctx) error {
	mutes, err := s.moderationService.ListMutes(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(mutes)
}

// ListMyFavorites handles GET /api/users/me/favorites
// @Summary My favorite places
// @Tags places
// @Success 200 {array} models.Place
// @Router /users/me/favorites [get]
func (s *Server) ListMyFavorites(c *fiber.Ctx) error {
	places, err := s.placeService.ListFavorites(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(places)
}
