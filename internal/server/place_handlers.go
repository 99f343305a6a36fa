package server

import (
	"strconv"

	"plantspack/internal/models"
	"plantspack/internal/service"

	"github.com/gofiber/fiber/v2"
)

type placeRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    models.PlaceCategory `json:"category"`
	VeganLevel  models.VeganLevel    `json:"vegan_level"`
	Latitude    float64              `json:"latitude"`
	Longitude   float64              `json:"longitude"`
	Address     string               `json:"address"`
	Website     string               `json:"website"`
	Phone       string               `json:"phone"`
	Tags        []string             `json:"tags"`
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

// CreatePlace handles POST /api/places
// @Summary Add a place
// @Tags places
// @Accept json
// @Produce json
// @Param request body placeRequest true "Place"
// @Success 201 {object} models.Place
// @Failure 400 {object} models.ErrorResponse
// @Router /places [post]
func (s *Server) CreatePlace(c *fiber.Ctx) error {
	var req placeRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	place, err := s.placeService.CreatePlace(c.UserContext(), service.CreatePlaceInput{
		UserID:      currentUserID(c),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		VeganLevel:  req.VeganLevel,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Address:     req.Address,
		Website:     req.Website,
		Phone:       req.Phone,
		Tags:        req.Tags,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(place)
}

// optionalFloat parses a query parameter that may be absent.
func optionalFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, models.NewValidationError("Invalid " + key)
	}
	return &v, nil
}

// ListPlaces handles GET /api/places
// @Summary List or search places
// @Description With lat and lng, places within radius_km (default 50, max 500) sorted by distance
// @Tags places
// @Produce json
// @Param lat query number false "Latitude"
// @Param lng query number false "Longitude"
// @Param radius_km query number false "Radius in km"
// @Param category query string false "eat, hotel, store, event, community or other"
// @Param q query string false "Name or tag filter"
// @Success 200 {array} models.Place
// @Router /places [get]
func (s *Server) ListPlaces(c *fiber.Ctx) error {
	lat, err := optionalFloat(c, "lat")
	if err != nil {
		return mapServiceError(c, err)
	}
	lng, err := optionalFloat(c, "lng")
	if err != nil {
		return mapServiceError(c, err)
	}
	if (lat == nil) != (lng == nil) {
		return mapServiceError(c, models.NewValidationError("lat and lng must be given together"))
	}
	radius, err := optionalFloat(c, "radius_km")
	if err != nil {
		return mapServiceError(c, err)
	}

	q := service.NearbyQuery{
		ViewerID:  s.optionalUserID(c),
		Latitude:  lat,
		Longitude: lng,
		Category:  models.PlaceCategory(c.Query("category")),
		Query:     c.Query("q"),
	}
	if radius != nil {
		q.RadiusKm = *radius
	}
	page := parsePagination(c, 50)
	q.Limit, q.Offset = page.Limit, page.Offset

	places, err := s.placeService.ListPlaces(c.UserContext(), q)
	if err != nil {
		return mapServiceError(c, err)
	}
	if places == nil {
		places = []models.Place{}
	}
	return c.JSON(places)
}

// GetPlace handles GET /api/places/:id
// @Summary Place detail
// @Tags places
// @Param id path int true "Place ID"
// @Success 200 {object} models.Place
// @Failure 404 {object} models.ErrorResponse
// @Router /places/{id} [get]
func (s *Server) GetPlace(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	place, err := s.placeService.GetPlace(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(place)
}

// DeletePlace handles DELETE /api/places/:id
// @Summary Remove a place
// @Description Creator or admin only
// @Tags places
// @Param id path int true "Place ID"
// @Success 200 {object} object{message=string}
// @Router /places/{id} [delete]
func (s *Server) DeletePlace(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.placeService.DeletePlace(c.UserContext(), id, currentUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Place deleted"})
}

// ListReviews handles GET /api/places/:id/reviews
// @Summary Reviews of a place
// @Tags places
// @Param id path int true "Place ID"
// @Success 200 {array} models.PlaceReview
// @Router /places/{id}/reviews [get]
func (s *Server) ListReviews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	reviews, err := s.placeService.ListReviews(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(reviews)
}

// CreateReview handles POST /api/places/:id/reviews
// @Summary Review a place
// @Description One review per user per place
// @Tags places
// @Accept json
// @Param id path int true "Place ID"
// @Param request body reviewRequest true "Review"
// @Success 201 {object} models.PlaceReview
// @Failure 409 {object} models.ErrorResponse
// @Router /places/{id}/reviews [post]
func (s *Server) CreateReview(c *fiber.Ctx) error {
	in, err := s.reviewInput(c)
	if err != nil {
		return nil
	}
	review, err := s.placeService.CreateReview(c.UserContext(), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

// UpdateReview handles PUT /api/places/:id/reviews
// @Summary Edit my review
// @Tags places
// @Accept json
// @Param id path int true "Place ID"
// @Param request body reviewRequest true "Review"
// @Success 200 {object} models.PlaceReview
// @Router /places/{id}/reviews [put]
func (s *Server) UpdateReview(c *fiber.Ctx) error {
	in, err := s.reviewInput(c)
	if err != nil {
		return nil
	}
	review, err := s.placeService.UpdateReview(c.UserContext(), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(review)
}

func (s *Server) reviewInput(c *fiber.Ctx) (service.ReviewInput, error) {
	id, err := s.parseID(c, "id")
	if err != nil {
		return service.ReviewInput{}, err
	}
	var req reviewRequest
	if err := parseBody(c, &req); err != nil {
		return service.ReviewInput{}, err
	}
	return service.ReviewInput{
		UserID:  currentUserID(c),
		PlaceID: id,
		Rating:  req.Rating,
		Content: req.Content,
	}, nil
}

// DeleteReview handles DELETE /api/places/:id/reviews
// @Summary Delete my review
// @Tags places
// @Param id path int true "Place ID"
// @Success 200 {object} object{message=string}
// @Router /places/{id}/reviews [delete]
func (s *Server) DeleteReview(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.placeService.DeleteReview(c.UserContext(), id, currentUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Review deleted"})
}

// FavoritePlace handles POST /api/places/:id/favorite
// @Summary Favorite a place
// @Tags places
// @Param id path int true "Place ID"
// @Success 200 {object} object{favorited=bool,changed=bool}
// @Router /places/{id}/favorite [post]
func (s *Server) FavoritePlace(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.placeService.AddFavorite(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"favorited": true, "changed": changed})
}

// UnfavoritePlace handles DELETE /api/places/:id/favorite
// @Summary Unfavorite a place
// @Tags places
// @Param id path int true "Place ID"
// @Success 200 {object} object{favorited=bool,changed=bool}
// @Router /places/{id}/favorite [delete]
func (s *Server) UnfavoritePlace(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.placeService.RemoveFavorite(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"favorited": false, "changed": changed})
}
