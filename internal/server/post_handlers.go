package server

import (
	"plantspack/internal/models"
	"plantspack/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Content    string                `json:"content"`
	ImageURLs  []string              `json:"image_urls"`
	VideoURL   string                `json:"video_url"`
	Visibility models.PostVisibility `json:"visibility"`
	PlaceID    *uint                 `json:"place_id"`
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Publishes a post after tier length, media and content safety checks
// @Tags posts
// @Accept json
// @Produce json
// @Param request body postRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:     currentUserID(c),
		Content:    req.Content,
		ImageURLs:  req.ImageURLs,
		VideoURL:   req.VideoURL,
		Visibility: req.Visibility,
		PlaceID:    req.PlaceID,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body postRequest true "Post"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:     currentUserID(c),
		PostID:     id,
		Content:    req.Content,
		ImageURLs:  req.ImageURLs,
		Visibility: req.Visibility,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), id, currentUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} service.ReactionResult
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.postService.Like(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(res)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Remove a like
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} service.ReactionResult
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.postService.Unlike(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(res)
}

// ReactToPost handles POST /api/posts/:id/reactions
// @Summary React to a post
// @Description One reaction per user; reacting again with another type changes it
// @Tags posts
// @Accept json
// @Param id path int true "Post ID"
// @Param request body object{type=string} true "like, love, helpful or inspiring"
// @Success 200 {object} service.ReactionResult
// @Router /posts/{id}/reactions [post]
func (s *Server) ReactToPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Type models.ReactionType `json:"type"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	res, err := s.postService.React(c.UserContext(), id, currentUserID(c), req.Type)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(res)
}

// SearchPosts handles GET /api/posts/search
// @Summary Search posts
// @Description Queries shorter than 3 characters return an empty list
// @Tags posts
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {array} models.Post
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.Search(c.UserContext(), c.Query("q"), s.optionalUserID(c), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.JSON(posts)
}

// GetFeed handles GET /api/feed
// @Summary Home feed
// @Description Ranked feed; a failed read returns an empty page with degraded=true
// @Tags feed
// @Produce json
// @Param sort query string false "relevancy, recent, popular or following"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} service.FeedResult
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	result := s.feedService.Feed(c.UserContext(), service.FeedQuery{
		ViewerID: s.optionalUserID(c),
		Sort:     c.Query("sort"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	return c.JSON(result)
}

// GetDraft handles GET /api/posts/draft
// @Summary Get the saved draft
// @Tags posts
// @Produce json
// @Success 200 {object} service.Draft
// @Success 204
// @Router /posts/draft [get]
func (s *Server) GetDraft(c *fiber.Ctx) error {
	draft, err := s.postService.GetDraft(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	if draft == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(draft)
}

// SaveDraft handles PUT /api/posts/draft
// @Summary Save the draft
// @Tags posts
// @Accept json
// @Produce json
// @Param request body service.Draft true "Draft"
// @Success 200 {object} service.Draft
// @Router /posts/draft [put]
func (s *Server) SaveDraft(c *fiber.Ctx) error {
	var req service.Draft
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	draft, err := s.postService.SaveDraft(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(draft)
}

// DeleteDraft handles DELETE /api/posts/draft
// @Summary Discard the draft
// @Tags posts
// @Success 204
// @Router /posts/draft [delete]
func (s *Server) DeleteDraft(c *fiber.Ctx) error {
	if err := s.postService.DeleteDraft(c.UserContext(), currentUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
