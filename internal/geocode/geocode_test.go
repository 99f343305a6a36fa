package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"plantspack/internal/cache"
	"plantspack/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNominatim(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "plantspack-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
			_, _ = w.Write([]byte(`[{"display_name":"Vegan Bistro, Berlin","lat":"52.52","lon":"13.40","category":"amenity","type":"restaurant"},{"display_name":"broken","lat":"x","lon":"1"}]`))
		case "/reverse":
			if r.URL.Query().Get("lat") == "0.000000" {
				_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
				return
			}
			_, _ = w.Write([]byte(`{"display_name":"Alexanderplatz, Berlin","lat":"52.5219","lon":"13.4132"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func useMiniredis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
}

func TestSearch_ShortQueryNeverCallsOut(t *testing.T) {
	var calls int32
	srv := newNominatim(t, &calls)
	c := NewClient(srv.URL, "plantspack-test")

	res, err := c.Search(context.Background(), " ab ")
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NotNil(t, res)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSearch_ParsesAndCaches(t *testing.T) {
	useMiniredis(t)
	var calls int32
	srv := newNominatim(t, &calls)
	c := NewClient(srv.URL, "plantspack-test")
	ctx := context.Background()

	res, err := c.Search(ctx, "vegan berlin")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Vegan Bistro, Berlin", res[0].DisplayName)
	assert.InDelta(t, 52.52, res[0].Latitude, 1e-9)

	_, err = c.Search(ctx, "Vegan Berlin")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReverse(t *testing.T) {
	var calls int32
	srv := newNominatim(t, &calls)
	c := NewClient(srv.URL, "plantspack-test")
	ctx := context.Background()

	loc, err := c.Reverse(ctx, 52.5219, 13.4132)
	require.NoError(t, err)
	assert.Equal(t, "Alexanderplatz, Berlin", loc.DisplayName)

	_, err = c.Reverse(ctx, 0, 0)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = c.Reverse(ctx, 120, 0)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestSearch_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "plantspack-test").Search(context.Background(), "tofu shop")
	assert.Equal(t, models.CodeUnavailable, models.ErrorCode(err))
}
