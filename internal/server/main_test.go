package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plantspack/internal/config"
	"plantspack/internal/contentsafety"
	"plantspack/internal/database"
	"plantspack/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Sunflower-Seeds-42!"

// testEnv is a full server over in-memory sqlite and miniredis.
type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

// blockingChecker flags any text containing one of its words.
type blockingChecker struct {
	words []string
}

func (b blockingChecker) Analyze(_ context.Context, text string) contentsafety.Result {
	for _, w := range b.words {
		if strings.Contains(strings.ToLower(text), w) {
			return contentsafety.Result{
				Flagged:     true,
				ShouldBlock: true,
				Categories:  map[string]float64{"hate": 0.98},
				Reasons:     []string{"hate"},
			}
		}
	}
	return contentsafety.Result{Categories: map[string]float64{}, Reasons: []string{}}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:srv_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigrations(context.Background(), db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:            "test-secret-for-handlers-0123456789",
		Env:                  "test",
		StorageBackend:       "local",
		StorageDir:           t.TempDir(),
		StoragePublicURL:     "/media",
		ImageMaxUploadSizeMB: 5,
		BillingSecret:        "whsec_test",
	}
	db := openTestDB(t)
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	srv.checker = blockingChecker{words: []string{"slur"}}
	srv.wireServices()

	return &testEnv{srv: srv, app: srv.NewApp(), db: db, mr: mr, rdb: rdb}
}

// request sends a JSON request with an optional bearer token.
func (e *testEnv) request(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// signup registers a user through the API and returns its token and id.
func (e *testEnv) signup(t *testing.T, username string) (string, uint) {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": username,
		"email":    username + "@plantspack.test",
		"password": testPassword,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[authResponse](t, resp)
	require.NotEmpty(t, body.Token)
	return body.Token, body.User.ID
}

// admin signs up a user and grants the admin role directly.
func (e *testEnv) admin(t *testing.T, username string) (string, uint) {
	t.Helper()
	token, id := e.signup(t, username)
	_, err := e.srv.userService.SetAdmin(context.Background(), id, true)
	require.NoError(t, err)
	return token, id
}

func (e *testEnv) claims(t *testing.T, token string) middleware.SessionClaims {
	t.Helper()
	claims, err := middleware.ParseToken(e.srv.config.JWTSecret, token)
	require.NoError(t, err)
	return claims
}
