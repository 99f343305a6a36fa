package service

import (
	"context"
	"testing"

	"plantspack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Sprouts&Kale2026"

func TestSignup(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()

	tests := []struct {
		name  string
		input SignupInput
	}{
		{"missing fields", SignupInput{Username: "fern"}},
		{"reserved username", SignupInput{Username: "admin", Email: "a@b.co", Password: strongPassword}},
		{"deleted prefix", SignupInput{Username: "deleted_12", Email: "a@b.co", Password: strongPassword}},
		{"bad email", SignupInput{Username: "fern", Email: "fern-at-example", Password: strongPassword}},
		{"weak password", SignupInput{Username: "fern", Email: "fern@example.com", Password: "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.userSvc.Signup(ctx, tt.input)
			assertCode(t, err, models.CodeValidation)
		})
	}

	user, err := st.userSvc.Signup(ctx, SignupInput{Username: "fern", Email: " Fern@Example.com ", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, "fern@example.com", user.Email)
	assert.NotEqual(t, strongPassword, user.Password)

	sub, err := st.subscriptions.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.Equal(t, models.SubscriptionActive, sub.Status)

	_, err = st.userSvc.Signup(ctx, SignupInput{Username: "fern2", Email: "FERN@example.com", Password: strongPassword})
	assertCode(t, err, models.CodeConflict)
	_, err = st.userSvc.Signup(ctx, SignupInput{Username: "Fern", Email: "other@example.com", Password: strongPassword})
	assertCode(t, err, models.CodeConflict)
}

func TestAuthenticate(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	user, err := st.userSvc.Signup(ctx, SignupInput{Username: "basil", Email: "basil@example.com", Password: strongPassword})
	require.NoError(t, err)

	got, err := st.userSvc.Authenticate(ctx, "BASIL@example.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = st.userSvc.Authenticate(ctx, "basil@example.com", "wrong")
	assertCode(t, err, models.CodeUnauthorized)
	_, err = st.userSvc.Authenticate(ctx, "nobody@example.com", strongPassword)
	assertCode(t, err, models.CodeUnauthorized)

	require.NoError(t, st.moderation.SetBanned(ctx, user.ID, true))
	_, err = st.userSvc.Authenticate(ctx, "basil@example.com", strongPassword)
	assertCode(t, err, models.CodeForbidden)
}

func TestSetPassword(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	user, err := st.userSvc.Signup(ctx, SignupInput{Username: "thyme", Email: "thyme@example.com", Password: strongPassword})
	require.NoError(t, err)

	assertCode(t, st.userSvc.SetPassword(ctx, user.ID, "short"), models.CodeValidation)
	require.NoError(t, st.userSvc.SetPassword(ctx, user.ID, "Chickpeas#4Ever"))

	_, err = st.userSvc.Authenticate(ctx, "thyme@example.com", "Chickpeas#4Ever")
	require.NoError(t, err)
}

func TestGetProfile(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	carol := st.user(t, "carol")

	_, err := st.follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	profile, err := st.userSvc.GetProfile(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsFollowing)
	assert.Empty(t, profile.Email)
	assert.Equal(t, int64(1), profile.FollowersCount)

	own, err := st.userSvc.GetProfile(ctx, bob.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@plantspack.test", own.Email)

	_, err = st.moderation.Block(ctx, bob.ID, carol.ID)
	require.NoError(t, err)
	_, err = st.userSvc.GetProfile(ctx, bob.ID, carol.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestUpdateProfile(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	st.user(t, "bobby")

	bio := "  Growing tomatoes on the balcony  "
	site := "https://alice.garden"
	updated, err := st.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Bio: &bio, Website: &site})
	require.NoError(t, err)
	assert.Equal(t, "Growing tomatoes on the balcony", updated.Bio)
	assert.Equal(t, site, updated.Website)

	var row models.User
	require.NoError(t, st.db.First(&row, alice.ID).Error)
	assert.Equal(t, "x", row.Password, "profile updates leave the password alone")

	taken := "Bobby"
	_, err = st.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: &taken})
	assertCode(t, err, models.CodeConflict)

	badSite := "javascript:alert(1)"
	_, err = st.userSvc.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Website: &badSite})
	assertCode(t, err, models.CodeValidation)
}

func TestSearchUsers(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	st.user(t, "sprout")
	st.user(t, "spruce")
	st.user(t, "kale")

	users, err := st.userSvc.SearchUsers(ctx, "@sp")
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = st.userSvc.SearchUsers(ctx, "@spr")
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.Email)
	}
}

func TestSetAdminAndListAdmins(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")

	promoted, err := st.userSvc.SetAdmin(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)

	admins, err := st.userSvc.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)

	isAdmin, err := st.userSvc.IsAdmin(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	_, err = st.userSvc.SetAdmin(ctx, alice.ID, false)
	require.NoError(t, err)
	admins, err = st.userSvc.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Empty(t, admins)
}
