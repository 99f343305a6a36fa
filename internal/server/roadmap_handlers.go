package server

import (
	"strings"

	"plantspack/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetRoadmap handles GET /api/roadmap
// @Summary Public roadmap
// @Description Items carry voted=true for the signed-in viewer's votes
// @Tags roadmap
// @Produce json
// @Success 200 {array} models.RoadmapItem
// @Router /roadmap [get]
func (s *Server) GetRoadmap(c *fiber.Ctx) error {
	items, err := s.roadmapService.List(c.UserContext(), s.optionalUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(items)
}

// VoteRoadmapItem handles POST /api/roadmap/:id/vote
// @Summary Toggle my vote on a roadmap item
// @Tags roadmap
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} service.VoteResult
// @Router /roadmap/{id}/vote [post]
func (s *Server) VoteRoadmapItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.roadmapService.ToggleVote(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(result)
}

// CreateRoadmapItem handles POST /api/admin/roadmap
// @Summary Add a roadmap item
// @Tags admin
// @Accept json
// @Produce json
// @Param request body object{title=string,description=string} true "Item"
// @Success 201 {object} models.RoadmapItem
// @Router /admin/roadmap [post]
func (s *Server) CreateRoadmapItem(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	item, err := s.roadmapService.Create(c.UserContext(), currentUserID(c),
		strings.TrimSpace(req.Title), strings.TrimSpace(req.Description))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// UpdateRoadmapItem handles PUT /api/admin/roadmap/:id
// @Summary Move a roadmap item to another status
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Item ID"
// @Param request body object{status=string} true "planned, in_progress or done"
// @Success 200 {object} models.RoadmapItem
// @Router /admin/roadmap/{id} [put]
func (s *Server) UpdateRoadmapItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status models.RoadmapStatus `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	item, err := s.roadmapService.UpdateStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(item)
}
