package repository

import (
	"context"
	"math"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaceFilter narrows a place listing. A zero bounding box means "anywhere".
type PlaceFilter struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	HasBounds      bool
	Category       models.PlaceCategory
	Query          string
	Limit          int
	Offset         int

	// Near orders rows closest to (CenterLat, CenterLng) first.
	Near                 bool
	CenterLat, CenterLng float64
}

// PlaceRepository stores places, reviews and favorites.
type PlaceRepository interface {
	Create(ctx context.Context, place *models.Place) error
	GetByID(ctx context.Context, id uint) (*models.Place, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, f PlaceFilter) ([]models.Place, error)
	Count(ctx context.Context) (int64, error)

	CreateReview(ctx context.Context, review *models.PlaceReview) error
	GetReview(ctx context.Context, placeID, userID uint) (*models.PlaceReview, error)
	UpdateReview(ctx context.Context, review *models.PlaceReview) error
	DeleteReview(ctx context.Context, placeID, userID uint) error
	ListReviews(ctx context.Context, placeID uint, limit, offset int) ([]models.PlaceReview, error)

	AddFavorite(ctx context.Context, userID, placeID uint) (created bool, err error)
	RemoveFavorite(ctx context.Context, userID, placeID uint) (removed bool, err error)
	ListFavorites(ctx context.Context, userID uint) ([]models.Place, error)
	FavoritedIDs(ctx context.Context, userID uint, placeIDs []uint) (map[uint]bool, error)
}

type placeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPlaceRepository returns the gorm PlaceRepository.
func NewPlaceRepository(db *gorm.DB) PlaceRepository {
	return &placeRepository{db: db, log: observability.NewRepoLogger("places")}
}

func (r *placeRepository) Create(ctx context.Context, place *models.Place) error {
	if err := r.db.WithContext(ctx).Create(place).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"place_id": place.ID})
	return nil
}

func (r *placeRepository) GetByID(ctx context.Context, id uint) (*models.Place, error) {
	var place models.Place
	err := cache.Aside(ctx, cache.PlaceKey(id), &place, cache.PlaceTTL, func() error {
		if err := readDB(ctx, r.db).Preload("Creator").First(&place, id).Error; err != nil {
			return notFoundOr(err, "Place", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &place, nil
}

func (r *placeRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Place{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Place", id)
	}
	cache.InvalidatePlace(ctx, id)
	r.log.LogDelete(ctx, map[string]interface{}{"place_id": id})
	return nil
}

func (r *placeRepository) List(ctx context.Context, f PlaceFilter) ([]models.Place, error) {
	limit, offset := clampPage(f.Limit, f.Offset, 100, 1000)
	tx := readDB(ctx, r.db).Model(&models.Place{})
	if f.HasBounds {
		tx = tx.Where("latitude BETWEEN ? AND ?", f.MinLat, f.MaxLat)
		// A box that crosses the antimeridian wraps around.
		if f.MinLng <= f.MaxLng {
			tx = tx.Where("longitude BETWEEN ? AND ?", f.MinLng, f.MaxLng)
		} else {
			tx = tx.Where("longitude >= ? OR longitude <= ?", f.MinLng, f.MaxLng)
		}
	}
	if f.Category != "" {
		tx = tx.Where("category = ?", f.Category)
	}
	if f.Query != "" {
		pattern := likePattern(f.Query)
		tx = tx.Where("LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(address) LIKE ? ESCAPE '\\'", pattern, pattern)
	}

	if f.Near {
		tx = tx.Clauses(nearestFirst(f.CenterLat, f.CenterLng))
	} else {
		tx = tx.Order("average_rating DESC").Order("id ASC")
	}

	var places []models.Place
	if err := tx.Limit(limit).Offset(offset).Find(&places).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return places, nil
}

// nearestFirst orders by squared distance on an equirectangular projection
// around the centre. Longitude differences wrap at the antimeridian.
func nearestFirst(lat, lng float64) clause.OrderBy {
	const dLng = "CASE WHEN ABS(longitude - ?) > 180 THEN 360 - ABS(longitude - ?) ELSE ABS(longitude - ?) END"
	k := math.Cos(lat * math.Pi / 180)
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                "(latitude - ?) * (latitude - ?) + " + dLng + " * " + dLng + " * ?, id ASC",
		Vars:               []any{lat, lat, lng, lng, lng, lng, lng, lng, k * k},
		WithoutParentheses: true,
	}}
}

func (r *placeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(ctx, r.db).Model(&models.Place{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// recomputeRating refreshes the place's aggregate from its reviews.
func recomputeRating(tx *gorm.DB, placeID uint) error {
	var agg struct {
		Avg   float64
		Total int64
	}
	err := tx.Model(&models.PlaceReview{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS total").
		Where("place_id = ?", placeID).
		Scan(&agg).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Place{}).Where("id = ?", placeID).Updates(map[string]any{
		"average_rating": agg.Avg,
		"review_count":   agg.Total,
	}).Error
}

// CreateReview returns CONFLICT when the user already reviewed the place.
func (r *placeRepository) CreateReview(ctx context.Context, review *models.PlaceReview) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return err
		}
		return recomputeRating(tx, review.PlaceID)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return models.NewConflictError("You have already reviewed this place")
		}
		r.log.LogError(ctx, err, "create_review")
		return models.NewInternalError(err)
	}
	cache.InvalidatePlace(ctx, review.PlaceID)
	return nil
}

func (r *placeRepository) GetReview(ctx context.Context, placeID, userID uint) (*models.PlaceReview, error) {
	var review models.PlaceReview
	err := r.db.WithContext(ctx).Where("place_id = ? AND user_id = ?", placeID, userID).First(&review).Error
	if err != nil {
		return nil, notFoundOr(err, "Review", placeID)
	}
	return &review, nil
}

func (r *placeRepository) UpdateReview(ctx context.Context, review *models.PlaceReview) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(review).Select("rating", "content").Updates(review).Error; err != nil {
			return err
		}
		return recomputeRating(tx, review.PlaceID)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePlace(ctx, review.PlaceID)
	return nil
}

func (r *placeRepository) DeleteReview(ctx context.Context, placeID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("place_id = ? AND user_id = ?", placeID, userID).Delete(&models.PlaceReview{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return recomputeRating(tx, placeID)
	})
	if err != nil {
		return notFoundOr(err, "Review", placeID)
	}
	cache.InvalidatePlace(ctx, placeID)
	return nil
}

func (r *placeRepository) ListReviews(ctx context.Context, placeID uint, limit, offset int) ([]models.PlaceReview, error) {
	limit, offset = clampPage(limit, offset, 20, 100)
	var reviews []models.PlaceReview
	err := readDB(ctx, r.db).
		Preload("User").
		Where("place_id = ?", placeID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reviews).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reviews, nil
}

func (r *placeRepository) AddFavorite(ctx context.Context, userID, placeID uint) (bool, error) {
	fav := models.PlaceFavorite{UserID: userID, PlaceID: placeID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "place_id"}},
		DoNothing: true,
	}).Create(&fav)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *placeRepository) RemoveFavorite(ctx context.Context, userID, placeID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND place_id = ?", userID, placeID).Delete(&models.PlaceFavorite{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *placeRepository) ListFavorites(ctx context.Context, userID uint) ([]models.Place, error) {
	var places []models.Place
	err := readDB(ctx, r.db).
		Joins("JOIN place_favorites ON place_favorites.place_id = places.id").
		Where("place_favorites.user_id = ?", userID).
		Order("place_favorites.created_at DESC").
		Find(&places).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range places {
		places[i].IsFavorite = true
	}
	return places, nil
}

func (r *placeRepository) FavoritedIDs(ctx context.Context, userID uint, placeIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(placeIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := readDB(ctx, r.db).Model(&models.PlaceFavorite{}).
		Where("user_id = ? AND place_id IN ?", userID, placeIDs).
		Pluck("place_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
