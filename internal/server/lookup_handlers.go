package server

import (
	"strconv"
	"strings"

	"plantspack/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GeocodeSearch handles GET /api/geocode/search
// @Summary Address search
// @Description Queries under 3 characters return [] without calling the geocoder
// @Tags geocode
// @Produce json
// @Param q query string true "Free text"
// @Success 200 {array} geocode.Location
// @Failure 503 {object} models.ErrorResponse
// @Router /geocode/search [get]
func (s *Server) GeocodeSearch(c *fiber.Ctx) error {
	locations, err := s.geocoder.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(locations)
}

// GeocodeReverse handles GET /api/geocode/reverse
// @Summary Reverse geocode
// @Tags geocode
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Success 200 {object} geocode.Location
// @Router /geocode/reverse [get]
func (s *Server) GeocodeReverse(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return mapServiceError(c, models.NewValidationError("lat and lng are required"))
	}
	location, err := s.geocoder.Reverse(c.UserContext(), lat, lng)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(location)
}

// AnalyzeContent handles POST /api/content/analyze
// @Summary Content safety preflight
// @Description Classifies text the way the composer will; shouldBlock=true means publishing will be rejected
// @Tags content
// @Accept json
// @Produce json
// @Param request body object{text=string} true "Text"
// @Success 200 {object} contentsafety.Result
// @Router /content/analyze [post]
func (s *Server) AnalyzeContent(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if strings.TrimSpace(req.Text) == "" {
		return mapServiceError(c, models.NewValidationError("text is required"))
	}
	return c.JSON(s.checker.Analyze(c.UserContext(), req.Text))
}
