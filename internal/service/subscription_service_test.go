package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func billingBody(t *testing.T, id, eventType string, data BillingEventData) []byte {
	t.Helper()
	body, err := json.Marshal(BillingEvent{ID: id, Type: eventType, Data: data})
	require.NoError(t, err)
	return body
}

func TestVerifySignature(t *testing.T) {
	st := newTestStack(t, "")
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	st.subscriptions.now = func() time.Time { return now }
	secret := []byte("whsec_test")
	body := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", SignPayload(secret, now, body), true},
		{"within tolerance", SignPayload(secret, now.Add(-4*time.Minute), body), true},
		{"stale", SignPayload(secret, now.Add(-6*time.Minute), body), false},
		{"future", SignPayload(secret, now.Add(6*time.Minute), body), false},
		{"wrong secret", SignPayload([]byte("other"), now, body), false},
		{"malformed", "v1=deadbeef", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := st.subscriptions.VerifySignature(tt.header, body)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assertCode(t, err, models.CodeUnauthorized)
			}
		})
	}

	tampered := SignPayload(secret, now, body)
	assertCode(t, st.subscriptions.VerifySignature(tampered, []byte(`{"id":"evt_2"}`)), models.CodeUnauthorized)

	unconfigured := NewSubscriptionService(nil, nil, "", nil)
	assertCode(t, unconfigured.VerifySignature(tampered, body), models.CodeUnavailable)
}

func TestHandleWebhook_UpgradeThenCancel(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	secret := []byte("whsec_test")

	end := time.Now().Add(30 * 24 * time.Hour).Unix()
	body := billingBody(t, "evt_up", BillingSubscriptionUpdated, BillingEventData{
		UserID:           alice.ID,
		ExternalID:       "sub_123",
		Tier:             "Premium",
		Status:           "active",
		CurrentPeriodEnd: end,
	})
	res, err := st.subscriptions.HandleWebhook(ctx, SignPayload(secret, time.Now(), body), body)
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.False(t, res.Duplicate)

	sub, err := st.subscriptions.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, sub.Tier)
	assert.Equal(t, "sub_123", sub.ExternalID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, end, sub.CurrentPeriodEnd.Unix())

	user, err := st.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, user.Tier)
	assert.Equal(t, 1, st.publisher.count(notifications.EventSubscriptionChanged))

	body = billingBody(t, "evt_cancel", BillingSubscriptionCanceled, BillingEventData{UserID: alice.ID, ExternalID: "sub_123"})
	_, err = st.subscriptions.HandleWebhook(ctx, SignPayload(secret, time.Now(), body), body)
	require.NoError(t, err)

	sub, err = st.subscriptions.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
}

func TestHandleWebhook_DuplicateDelivery(t *testing.T) {
	st := newTestStack(t, "")
	mr := withRedis(t)
	ctx := context.Background()
	alice := st.user(t, "alice")
	secret := []byte("whsec_test")

	body := billingBody(t, "evt_dup", BillingSubscriptionUpdated, BillingEventData{UserID: alice.ID, Tier: "medium"})
	sig := SignPayload(secret, time.Now(), body)

	first, err := st.subscriptions.HandleWebhook(ctx, sig, body)
	require.NoError(t, err)
	assert.True(t, first.Handled)
	assert.True(t, mr.Exists(cache.BillingEventKey("evt_dup")))

	second, err := st.subscriptions.HandleWebhook(ctx, sig, body)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Handled)
	assert.Equal(t, 1, st.publisher.count(notifications.EventSubscriptionChanged))
}

func TestHandleWebhook_FailedApplyCanBeRetried(t *testing.T) {
	st := newTestStack(t, "")
	mr := withRedis(t)
	ctx := context.Background()
	secret := []byte("whsec_test")

	body := billingBody(t, "evt_bad", BillingSubscriptionUpdated, BillingEventData{UserID: 999, Tier: "medium"})
	_, err := st.subscriptions.HandleWebhook(ctx, SignPayload(secret, time.Now(), body), body)
	assertCode(t, err, models.CodeNotFound)
	assert.False(t, mr.Exists(cache.BillingEventKey("evt_bad")))
}

func TestHandleWebhook_IgnoresUnknownEvents(t *testing.T) {
	st := newTestStack(t, "")
	secret := []byte("whsec_test")

	body := billingBody(t, "evt_inv", "invoice.paid", BillingEventData{})
	res, err := st.subscriptions.HandleWebhook(context.Background(), SignPayload(secret, time.Now(), body), body)
	require.NoError(t, err)
	assert.False(t, res.Handled)

	body = billingBody(t, "evt_tier", BillingSubscriptionUpdated, BillingEventData{UserID: 1, Tier: "platinum"})
	_, err = st.subscriptions.HandleWebhook(context.Background(), SignPayload(secret, time.Now(), body), body)
	assertCode(t, err, models.CodeValidation)
}

func TestSetTier(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")

	_, err := st.subscriptions.SetTier(ctx, alice.ID, "gold")
	assertCode(t, err, models.CodeValidation)

	sub, err := st.subscriptions.SetTier(ctx, alice.ID, "MEDIUM")
	require.NoError(t, err)
	assert.Equal(t, models.TierMedium, sub.Tier)
	assert.Equal(t, models.SubscriptionActive, sub.Status)

	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: strings.Repeat("a", 900)})
	require.NoError(t, err, "medium tier allows 1000 characters")
}

