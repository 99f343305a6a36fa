package server

import (
	"fmt"
	"net/http"
	"testing"

	"plantspack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createPlace(t *testing.T, token, name string, lat, lng float64) models.Place {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/places", map[string]any{
		"name":        name,
		"category":    "eat",
		"vegan_level": "fully_vegan",
		"latitude":    lat,
		"longitude":   lng,
		"address":     "1 Garden Row",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.Place](t, resp)
}

func TestPlaces_CreateAndNearby(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "jackfruit")

	near := env.createPlace(t, token, "Green Bowl", 52.5200, 13.4050)
	env.createPlace(t, token, "Faraway Falafel", 48.8566, 2.3522)

	resp := env.request(t, http.MethodGet, "/api/places?lat=52.52&lng=13.40&radius_km=10", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	places := decode[[]models.Place](t, resp)
	require.Len(t, places, 1)
	assert.Equal(t, near.ID, places[0].ID)

	all := env.request(t, http.MethodGet, "/api/places?category=eat", nil, "")
	require.Equal(t, http.StatusOK, all.StatusCode)
	assert.Len(t, decode[[]models.Place](t, all), 2)
}

func TestPlaces_QueryValidation(t *testing.T) {
	env := newTestEnv(t)
	for _, q := range []string{"?lat=52.5", "?lng=13.4", "?lat=abc&lng=1"} {
		resp := env.request(t, http.MethodGet, "/api/places"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}

	token, _ := env.signup(t, "quinoa")
	bad := env.request(t, http.MethodPost, "/api/places", map[string]any{
		"name": "Nowhere", "category": "spaceport", "latitude": 0, "longitude": 0,
	}, token)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestPlaces_ReviewsAndFavorites(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.signup(t, "barley")
	guest, _ := env.signup(t, "spelt")
	place := env.createPlace(t, owner, "Rye Bakery", 51.5, -0.12)

	reviews := fmt.Sprintf("/api/places/%d/reviews", place.ID)
	resp := env.request(t, http.MethodPost, reviews, map[string]any{"rating": 5, "content": "Great sourdough"}, guest)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	again := env.request(t, http.MethodPost, reviews, map[string]any{"rating": 4, "content": "Second go"}, guest)
	assert.Equal(t, http.StatusConflict, again.StatusCode)

	outOfRange := env.request(t, http.MethodPut, reviews, map[string]any{"rating": 9}, guest)
	assert.Equal(t, http.StatusBadRequest, outOfRange.StatusCode)

	got := env.request(t, http.MethodGet, fmt.Sprintf("/api/places/%d", place.ID), nil, "")
	require.Equal(t, http.StatusOK, got.StatusCode)
	detail := decode[models.Place](t, got)
	assert.Equal(t, int64(1), detail.ReviewCount)
	assert.InDelta(t, 5.0, detail.AverageRating, 0.001)

	fav := fmt.Sprintf("/api/places/%d/favorite", place.ID)
	first := env.request(t, http.MethodPost, fav, nil, guest)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, first)["changed"])

	second := env.request(t, http.MethodPost, fav, nil, guest)
	assert.Equal(t, false, decode[map[string]any](t, second)["changed"])

	mine := env.request(t, http.MethodGet, "/api/users/me/favorites", nil, guest)
	require.Equal(t, http.StatusOK, mine.StatusCode)
	assert.Len(t, decode[[]models.Place](t, mine), 1)
}

func TestDeletePlace_OnlyCreatorOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	creator, _ := env.signup(t, "walnut")
	stranger, _ := env.signup(t, "pecan")
	adminToken, _ := env.admin(t, "gardener")

	p1 := env.createPlace(t, creator, "Nut House", 40.0, -3.7)
	p2 := env.createPlace(t, creator, "Seed Store", 40.1, -3.6)

	assert.Equal(t, http.StatusForbidden,
		env.request(t, http.MethodDelete, fmt.Sprintf("/api/places/%d", p1.ID), nil, stranger).StatusCode)
	assert.Equal(t, http.StatusOK,
		env.request(t, http.MethodDelete, fmt.Sprintf("/api/places/%d", p1.ID), nil, creator).StatusCode)
	assert.Equal(t, http.StatusOK,
		env.request(t, http.MethodDelete, fmt.Sprintf("/api/places/%d", p2.ID), nil, adminToken).StatusCode)
}
