package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"plantspack/internal/contentsafety"
	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/validation"
)

const (
	EarthRadiusKm   = 6371.0
	DefaultRadiusKm = 50.0
	MaxRadiusKm     = 500.0
	maxPlaceTags    = 10
)

type PlaceService struct {
	places        repository.PlaceRepository
	users         repository.UserRepository
	notifications *NotificationService
	checker       contentsafety.Checker
	isAdmin       func(ctx context.Context, userID uint) (bool, error)
}

type CreatePlaceInput struct {
	UserID      uint
	Name        string
	Description string
	Category    models.PlaceCategory
	VeganLevel  models.VeganLevel
	Latitude    float64
	Longitude   float64
	Address     string
	Website     string
	Phone       string
	Tags        []string
}

// NearbyQuery lists places, optionally around a point.
type NearbyQuery struct {
	ViewerID  uint
	Latitude  *float64
	Longitude *float64
	RadiusKm  float64
	Category  models.PlaceCategory
	Query     string
	Limit     int
	Offset    int
}

type ReviewInput struct {
	UserID  uint
	PlaceID uint
	Rating  int
	Content string
}

func NewPlaceService(
	places repository.PlaceRepository,
	users repository.UserRepository,
	notifications *NotificationService,
	checker contentsafety.Checker,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PlaceService {
	return &PlaceService{
		places:        places,
		users:         users,
		notifications: notifications,
		checker:       checkerOrAllow(checker),
		isAdmin:       isAdmin,
	}
}

// HaversineKm is the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BoundingBox returns a lat/lng box that contains the circle of radiusKm.
// MinLng > MaxLng means the box wraps across the antimeridian.
func BoundingBox(lat, lng, radiusKm float64) repository.PlaceFilter {
	latDelta := radiusKm / EarthRadiusKm * 180 / math.Pi
	f := repository.PlaceFilter{
		HasBounds: true,
		MinLat:    math.Max(-90, lat-latDelta),
		MaxLat:    math.Min(90, lat+latDelta),
		MinLng:    -180,
		MaxLng:    180,
	}
	if lat+latDelta >= 90 || lat-latDelta <= -90 {
		return f
	}
	lngDelta := latDelta / math.Cos(lat*math.Pi/180)
	if lngDelta >= 180 {
		return f
	}
	f.MinLng = lng - lngDelta
	f.MaxLng = lng + lngDelta
	if f.MinLng < -180 {
		f.MinLng += 360
	}
	if f.MaxLng > 180 {
		f.MaxLng -= 360
	}
	return f
}

func (s *PlaceService) CreatePlace(ctx context.Context, in CreatePlaceInput) (*models.Place, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("Your account is suspended")
	}

	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateLength("name", name, 1, 200); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if !in.Category.Valid() {
		return nil, models.NewValidationError("category must be one of eat, hotel, store, event, community, other")
	}
	level := in.VeganLevel
	if level == "" {
		level = models.VeganFriendly
	}
	if !level.Valid() {
		return nil, models.NewValidationError("vegan_level must be fully_vegan or vegan_friendly")
	}
	if err := validation.ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateWebsite(strings.TrimSpace(in.Website)); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("description", in.Description, 0, 5000); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	if err := screen(ctx, s.checker, name+"\n"+in.Description); err != nil {
		return nil, err
	}

	place := &models.Place{
		CreatedBy:   user.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		VeganLevel:  level,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Address:     strings.TrimSpace(in.Address),
		Website:     strings.TrimSpace(in.Website),
		Phone:       strings.TrimSpace(in.Phone),
		Tags:        tags,
	}
	if err := s.places.Create(ctx, place); err != nil {
		return nil, err
	}
	return place, nil
}

func normalizeTags(raw []string) ([]string, error) {
	if len(raw) > maxPlaceTags {
		return nil, models.NewValidationError("A place can have at most 10 tags")
	}
	out := make([]string, 0, len(raw))
	seen := map[string]bool{}
	for _, t := range raw {
		tag, err := validation.NormalizeHashtag(t)
		if err != nil {
			return nil, models.NewValidationError("tags: " + err.Error())
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out, nil
}

// nearbyPrefetch caps the bounding-box rows read for one nearby query.
const nearbyPrefetch = 1000

// ListPlaces filters by category and text, and when a point is given by
// Haversine distance over a bounding-box prefetch, nearest first.
func (s *PlaceService) ListPlaces(ctx context.Context, q NearbyQuery) ([]models.Place, error) {
	filter := repository.PlaceFilter{}
	near := q.Latitude != nil && q.Longitude != nil
	radius := q.RadiusKm
	if near {
		if err := validation.ValidateCoordinates(*q.Latitude, *q.Longitude); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if radius <= 0 {
			radius = DefaultRadiusKm
		}
		if radius > MaxRadiusKm {
			radius = MaxRadiusKm
		}
		filter = BoundingBox(*q.Latitude, *q.Longitude, radius)
		filter.Near = true
		filter.CenterLat, filter.CenterLng = *q.Latitude, *q.Longitude
		filter.Limit = nearbyPrefetch
	} else {
		filter.Limit = q.Limit
		filter.Offset = q.Offset
	}
	if q.Category != "" {
		if !q.Category.Valid() {
			return nil, models.NewValidationError("Unknown category")
		}
		filter.Category = q.Category
	}
	filter.Query = strings.TrimSpace(q.Query)

	places, err := s.places.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if near {
		kept := places[:0]
		for _, p := range places {
			d := HaversineKm(*q.Latitude, *q.Longitude, p.Latitude, p.Longitude)
			if d <= radius {
				p.DistanceKm = math.Round(d*100) / 100
				kept = append(kept, p)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].DistanceKm < kept[j].DistanceKm })
		places = page(kept, q.Limit, q.Offset)
	}

	if err := s.markFavorites(ctx, q.ViewerID, places); err != nil {
		return nil, err
	}
	return places, nil
}

func page(places []models.Place, limit, offset int) []models.Place {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 || offset >= len(places) {
		return []models.Place{}
	}
	end := offset + limit
	if end > len(places) {
		end = len(places)
	}
	return places[offset:end]
}

func (s *PlaceService) markFavorites(ctx context.Context, userID uint, places []models.Place) error {
	if userID == 0 || len(places) == 0 {
		return nil
	}
	ids := make([]uint, len(places))
	for i, p := range places {
		ids[i] = p.ID
	}
	favs, err := s.places.FavoritedIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	for i := range places {
		places[i].IsFavorite = favs[places[i].ID]
	}
	return nil
}

func (s *PlaceService) GetPlace(ctx context.Context, placeID, viewerID uint) (*models.Place, error) {
	place, err := s.places.GetByID(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if place.Creator != nil {
		pub := place.Creator.PublicView()
		place.Creator = &pub
	}
	one := []models.Place{*place}
	if err := s.markFavorites(ctx, viewerID, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// DeletePlace soft-deletes a place. Creator or admin.
func (s *PlaceService) DeletePlace(ctx context.Context, placeID, userID uint) error {
	place, err := s.places.GetByID(ctx, placeID)
	if err != nil {
		return err
	}
	if place.CreatedBy != userID {
		admin := false
		if s.isAdmin != nil {
			if admin, err = s.isAdmin(ctx, userID); err != nil {
				return err
			}
		}
		if !admin {
			return models.NewForbiddenError("Only the creator or an admin can delete this place")
		}
	}
	return s.places.Delete(ctx, placeID)
}

func validateReview(in ReviewInput) (string, error) {
	if err := validation.ValidateRating(in.Rating); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	content := strings.TrimSpace(in.Content)
	if err := validation.ValidateLength("content", content, 0, 2000); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return content, nil
}

// CreateReview adds the user's only review of a place.
func (s *PlaceService) CreateReview(ctx context.Context, in ReviewInput) (*models.PlaceReview, error) {
	content, err := validateReview(in)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("Your account is suspended")
	}
	place, err := s.places.GetByID(ctx, in.PlaceID)
	if err != nil {
		return nil, err
	}
	if err := screen(ctx, s.checker, content); err != nil {
		return nil, err
	}

	review := &models.PlaceReview{PlaceID: place.ID, UserID: user.ID, Rating: in.Rating, Content: content}
	if err := s.places.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	s.notifications.NotifyBestEffort(ctx, NotifyInput{
		RecipientID: place.CreatedBy,
		ActorID:     user.ID,
		Type:        models.NotificationReview,
		TargetType:  models.ReportTargetPlace,
		TargetID:    place.ID,
		Message:     user.Username + " reviewed " + place.Name,
	})
	return review, nil
}

func (s *PlaceService) UpdateReview(ctx context.Context, in ReviewInput) (*models.PlaceReview, error) {
	content, err := validateReview(in)
	if err != nil {
		return nil, err
	}
	review, err := s.places.GetReview(ctx, in.PlaceID, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := screen(ctx, s.checker, content); err != nil {
		return nil, err
	}
	review.Rating = in.Rating
	review.Content = content
	if err := s.places.UpdateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *PlaceService) DeleteReview(ctx context.Context, placeID, userID uint) error {
	return s.places.DeleteReview(ctx, placeID, userID)
}

func (s *PlaceService) ListReviews(ctx context.Context, placeID uint, limit, offset int) ([]models.PlaceReview, error) {
	if _, err := s.places.GetByID(ctx, placeID); err != nil {
		return nil, err
	}
	reviews, err := s.places.ListReviews(ctx, placeID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		if reviews[i].User != nil {
			pub := reviews[i].User.PublicView()
			reviews[i].User = &pub
		}
	}
	return reviews, nil
}

func (s *PlaceService) AddFavorite(ctx context.Context, userID, placeID uint) (bool, error) {
	if _, err := s.places.GetByID(ctx, placeID); err != nil {
		return false, err
	}
	return s.places.AddFavorite(ctx, userID, placeID)
}

func (s *PlaceService) RemoveFavorite(ctx context.Context, userID, placeID uint) (bool, error) {
	return s.places.RemoveFavorite(ctx, userID, placeID)
}

func (s *PlaceService) ListFavorites(ctx context.Context, userID uint) ([]models.Place, error) {
	return s.places.ListFavorites(ctx, userID)
}
