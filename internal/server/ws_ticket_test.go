package server

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"plantspack/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	env := newTestEnv(t)
	token, id := env.signup(t, "clover")

	resp := env.request(t, http.MethodPost, "/api/ws/ticket", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)

	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)
	assert.Equal(t, float64(60), body["expires_in"])

	stored, err := env.mr.Get(cache.WSTicketKey(ticket))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(id), 10), stored)
	assert.Equal(t, cache.WSTicketTTL, env.mr.TTL(cache.WSTicketKey(ticket)))
}

func TestWSTicket_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "yarrow")

	resp := env.request(t, http.MethodPost, "/api/ws/ticket", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ticket := decode[map[string]any](t, resp)["ticket"].(string)

	// A plain GET passes auth but is not an upgrade.
	first := env.request(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, http.StatusUpgradeRequired, first.StatusCode)
	assert.False(t, env.mr.Exists(cache.WSTicketKey(ticket)))

	second := env.request(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, http.StatusUnauthorized, second.StatusCode)
}

func TestWSTicket_UnknownTicketRejected(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, http.MethodGet, "/api/ws?ticket=not-a-ticket", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSTicket_ExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "sedum")

	resp := env.request(t, http.MethodPost, "/api/ws/ticket", nil, token)
	ticket := decode[map[string]any](t, resp)["ticket"].(string)

	env.mr.FastForward(cache.WSTicketTTL + time.Second)
	expired := env.request(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, http.StatusUnauthorized, expired.StatusCode)
}
