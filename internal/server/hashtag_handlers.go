package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetTrendingHashtags handles GET /api/hashtags/trending
// @Summary Trending hashtags
// @Tags hashtags
// @Produce json
// @Param days query int false "Window in days (default 7)"
// @Param limit query int false "Max tags (default 10)"
// @Success 200 {array} models.TrendingHashtag
// @Router /hashtags/trending [get]
func (s *Server) GetTrendingHashtags(c *fiber.Ctx) error {
	tags, err := s.hashtagService.Trending(c.UserContext(), c.QueryInt("days", 7), c.QueryInt("limit", 10))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(tags)
}

// GetHashtagPosts handles GET /api/hashtags/:tag/posts
// @Summary Posts tagged with a hashtag
// @Tags hashtags
// @Produce json
// @Param tag path string true "Tag, with or without #"
// @Success 200 {array} models.Post
// @Router /hashtags/{tag}/posts [get]
func (s *Server) GetHashtagPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.hashtagService.PostsByTag(c.UserContext(), c.Params("tag"), s.optionalUserID(c), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(posts)
}
