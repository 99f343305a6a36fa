package service

import (
	"context"
	"testing"

	"plantspack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKm(t *testing.T) {
	// Berlin to Paris is roughly 878 km.
	assert.InDelta(t, 878, HaversineKm(52.5200, 13.4050, 48.8566, 2.3522), 5)
	assert.Zero(t, HaversineKm(10, 10, 10, 10))
	// Half the equator.
	assert.InDelta(t, 20015, HaversineKm(0, 0, 0, 180), 1)
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox(52.52, 13.405, 10)
	assert.True(t, box.HasBounds)
	assert.Less(t, box.MinLat, 52.52)
	assert.Greater(t, box.MaxLat, 52.52)
	assert.Less(t, box.MinLng, box.MaxLng)

	wrapped := BoundingBox(0, 179.9, 50)
	assert.Greater(t, wrapped.MinLng, wrapped.MaxLng, "box crosses the antimeridian")

	polar := BoundingBox(89.9, 0, 50)
	assert.Equal(t, -180.0, polar.MinLng)
	assert.Equal(t, 180.0, polar.MaxLng)
}

func createPlace(t *testing.T, st *testStack, userID uint, name string, lat, lng float64) *models.Place {
	t.Helper()
	p, err := st.places.CreatePlace(context.Background(), CreatePlaceInput{
		UserID:    userID,
		Name:      name,
		Category:  models.PlaceEat,
		Latitude:  lat,
		Longitude: lng,
		Tags:      []string{"#Brunch", "brunch", "GlutenFree"},
	})
	require.NoError(t, err)
	return p
}

func TestCreatePlace_Validation(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")

	base := CreatePlaceInput{UserID: alice.ID, Name: "Kopps", Category: models.PlaceEat, Latitude: 52.5, Longitude: 13.4}

	in := base
	in.Name = "  "
	_, err := st.places.CreatePlace(ctx, in)
	assertCode(t, err, models.CodeValidation)

	in = base
	in.Category = "bar"
	_, err = st.places.CreatePlace(ctx, in)
	assertCode(t, err, models.CodeValidation)

	in = base
	in.Latitude = 91
	_, err = st.places.CreatePlace(ctx, in)
	assertCode(t, err, models.CodeValidation)

	in = base
	in.Website = "ftp://kopps.de"
	_, err = st.places.CreatePlace(ctx, in)
	assertCode(t, err, models.CodeValidation)

	in = base
	in.Description = "a slur"
	_, err = st.places.CreatePlace(ctx, in)
	assertCode(t, err, models.CodeBlocked)

	p := createPlace(t, st, alice.ID, "Kopps", 52.5, 13.4)
	assert.Equal(t, models.VeganFriendly, p.VeganLevel)
	assert.Equal(t, []string{"brunch", "glutenfree"}, p.Tags)
}

func TestListPlaces_RadiusAndDistanceOrder(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")

	near := createPlace(t, st, alice.ID, "Mitte Cafe", 52.5205, 13.4095)
	nearer := createPlace(t, st, alice.ID, "Alex Deli", 52.5200, 13.4060)
	createPlace(t, st, alice.ID, "Paris Bistro", 48.8566, 2.3522)

	lat, lng := 52.5200, 13.4050
	places, err := st.places.ListPlaces(ctx, NearbyQuery{ViewerID: alice.ID, Latitude: &lat, Longitude: &lng, RadiusKm: 10})
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, nearer.ID, places[0].ID)
	assert.Equal(t, near.ID, places[1].ID)
	assert.LessOrEqual(t, places[0].DistanceKm, places[1].DistanceKm)

	all, err := st.places.ListPlaces(ctx, NearbyQuery{ViewerID: alice.ID, Latitude: &lat, Longitude: &lng, RadiusKm: 5000})
	require.NoError(t, err)
	assert.Len(t, all, 2, "radius is capped at 500km")

	bad := 200.0
	_, err = st.places.ListPlaces(ctx, NearbyQuery{Latitude: &lat, Longitude: &bad})
	assertCode(t, err, models.CodeValidation)
}

func TestListPlaces_DensePrefetchKeepsNearest(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")

	lat, lng := 52.5200, 13.4050
	far := make([]models.Place, 0, nearbyPrefetch)
	for i := 0; i < nearbyPrefetch; i++ {
		far = append(far, models.Place{
			CreatedBy:     alice.ID,
			Name:          "Far Away Favourite",
			Category:      models.PlaceEat,
			Latitude:      lat + 0.36,
			Longitude:     lng,
			AverageRating: 5,
			ReviewCount:   10,
		})
	}
	require.NoError(t, st.db.CreateInBatches(&far, 200).Error)
	here := createPlace(t, st, alice.ID, "Corner Cafe", lat, lng)

	places, err := st.places.ListPlaces(ctx, NearbyQuery{ViewerID: alice.ID, Latitude: &lat, Longitude: &lng, Limit: 5})
	require.NoError(t, err)
	require.Len(t, places, 5)
	assert.Equal(t, here.ID, places[0].ID)
	assert.Zero(t, places[0].DistanceKm)
	assert.InDelta(t, 40.0, places[1].DistanceKm, 0.5)
}

func TestPlaceReviews(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	carol := st.user(t, "carol")
	place := createPlace(t, st, alice.ID, "Kopps", 52.5, 13.4)

	_, err := st.places.CreateReview(ctx, ReviewInput{UserID: bob.ID, PlaceID: place.ID, Rating: 6})
	assertCode(t, err, models.CodeValidation)

	_, err = st.places.CreateReview(ctx, ReviewInput{UserID: bob.ID, PlaceID: place.ID, Rating: 5, Content: "Best brunch"})
	require.NoError(t, err)
	_, err = st.places.CreateReview(ctx, ReviewInput{UserID: bob.ID, PlaceID: place.ID, Rating: 1})
	assertCode(t, err, models.CodeConflict)
	_, err = st.places.CreateReview(ctx, ReviewInput{UserID: carol.ID, PlaceID: place.ID, Rating: 2})
	require.NoError(t, err)

	got, err := st.places.GetPlace(ctx, place.ID, 0)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got.AverageRating, 1e-9)
	assert.Equal(t, int64(2), got.ReviewCount)

	_, err = st.places.UpdateReview(ctx, ReviewInput{UserID: carol.ID, PlaceID: place.ID, Rating: 4})
	require.NoError(t, err)
	got, err = st.places.GetPlace(ctx, place.ID, 0)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, got.AverageRating, 1e-9)

	require.NoError(t, st.places.DeleteReview(ctx, place.ID, bob.ID))
	got, err = st.places.GetPlace(ctx, place.ID, 0)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got.AverageRating, 1e-9)
	assert.Equal(t, int64(1), got.ReviewCount)

	inbox, err := st.notifications.List(ctx, alice.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, models.NotificationReview, inbox[0].Type)

	reviews, err := st.places.ListReviews(ctx, place.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.NotNil(t, reviews[0].User)
	assert.Empty(t, reviews[0].User.Email)
}

func TestPlaceFavorites_Idempotent(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	place := createPlace(t, st, alice.ID, "Kopps", 52.5, 13.4)

	added, err := st.places.AddFavorite(ctx, alice.ID, place.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = st.places.AddFavorite(ctx, alice.ID, place.ID)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := st.places.GetPlace(ctx, place.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)

	favs, err := st.places.ListFavorites(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, favs, 1)

	removed, err := st.places.RemoveFavorite(ctx, alice.ID, place.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = st.places.RemoveFavorite(ctx, alice.ID, place.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = st.places.AddFavorite(ctx, alice.ID, 999)
	assertCode(t, err, models.CodeNotFound)
}

func TestDeletePlace_CreatorOrAdmin(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	admin := st.user(t, "admin_user")
	require.NoError(t, st.db.Model(admin).Update("is_admin", true).Error)

	p1 := createPlace(t, st, alice.ID, "One", 1, 1)
	p2 := createPlace(t, st, alice.ID, "Two", 2, 2)

	assertCode(t, st.places.DeletePlace(ctx, p1.ID, bob.ID), models.CodeForbidden)
	require.NoError(t, st.places.DeletePlace(ctx, p1.ID, alice.ID))
	require.NoError(t, st.places.DeletePlace(ctx, p2.ID, admin.ID))

	_, err := st.places.GetPlace(ctx, p1.ID, 0)
	assertCode(t, err, models.CodeNotFound)
}
