//go:build integration

package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"plantspack/internal/config"
	"plantspack/internal/models"
	"plantspack/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIntegrationEnv runs against the Postgres and Redis named by the
// environment, the way cmd/server does.
func newIntegrationEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	srv, err := NewServer(cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	if srv.redis == nil {
		t.Skip("redis unavailable")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return &testEnv{srv: srv, app: srv.NewApp(), db: srv.db, rdb: srv.redis}
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano()%1_000_000_000)
}

func TestIntegration_FollowFeedAndHashtags(t *testing.T) {
	env := newIntegrationEnv(t)
	authorToken, authorID := env.signup(t, uniqueName("author"))
	readerToken, _ := env.signup(t, uniqueName("reader"))

	resp := env.request(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", authorID), nil, readerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tag := uniqueName("lentils")
	post := env.createPost(t, authorToken, "Red lentil dal tonight #"+tag)

	resp = env.request(t, http.MethodGet, "/api/feed?sort=following", nil, readerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed := decode[service.FeedResult](t, resp)
	require.NotEmpty(t, feed.Posts)
	assert.Equal(t, post.ID, feed.Posts[0].ID)

	resp = env.request(t, http.MethodGet, "/api/hashtags/"+tag+"/posts", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tagged := decode[[]models.Post](t, resp)
	require.Len(t, tagged, 1)
	assert.Equal(t, post.ID, tagged[0].ID)
}

func TestIntegration_PlacesAndReviews(t *testing.T) {
	env := newIntegrationEnv(t)
	token, _ := env.signup(t, uniqueName("mapper"))
	reviewerToken, _ := env.signup(t, uniqueName("critic"))

	place := env.createPlace(t, token, uniqueName("Seitan Corner"), -33.8688, 151.2093)

	resp := env.request(t, http.MethodPost, fmt.Sprintf("/api/places/%d/reviews", place.ID),
		map[string]any{"rating": 4, "content": "Great dumplings"}, reviewerToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/places?lat=-33.87&lng=151.21&radius_km=5", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found *models.Place
	for _, p := range decode[[]models.Place](t, resp) {
		if p.ID == place.ID {
			p := p
			found = &p
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, int64(1), found.ReviewCount)
	assert.InDelta(t, 4.0, found.AverageRating, 0.001)
}

func TestIntegration_ReadinessReportsDependencies(t *testing.T) {
	env := newIntegrationEnv(t)
	resp := env.request(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
