package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = slog.New(&ctxHandler{slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})})
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestStructuredLogger_LevelsByStatus(t *testing.T) {
	buf := captureLogs(t)

	app := fiber.New()
	app.Use(StructuredLogger())
	app.Get("/api/places/:id", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(3))
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/posts", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusBadRequest)
	})
	app.Delete("/api/posts/:id", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/places/9", nil),
		httptest.NewRequest(http.MethodPost, "/api/posts", nil),
		httptest.NewRequest(http.MethodDelete, "/api/posts/1", nil),
	} {
		_, err := app.Test(req)
		require.NoError(t, err)
	}

	lines := logLines(t, buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "/api/places/:id", lines[0]["route"])
	assert.Equal(t, "places", lines[0]["area"])
	assert.EqualValues(t, 3, lines[0]["member_id"])

	assert.Equal(t, "WARN", lines[1]["level"])
	assert.EqualValues(t, 400, lines[1]["status"])

	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.EqualValues(t, 503, lines[2]["status"])
	assert.Equal(t, "database unavailable", lines[2]["error"])
}

func TestStructuredLogger_SkipsHealthPolls(t *testing.T) {
	buf := captureLogs(t)

	app := fiber.New()
	app.Use(StructuredLogger())
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(buf.String()))
}
