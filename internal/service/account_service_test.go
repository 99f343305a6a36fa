package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDeleteAccount_RequiresConfirmation(t *testing.T) {
	st := newTestStack(t, "")
	alice := st.user(t, "alice")

	err := st.accounts.DeleteAccount(context.Background(), alice.ID, "delete")
	assertCode(t, err, models.CodeValidation)

	got, err := st.users.GetByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AnonymizedAt)
}

func TestDeleteAccount_Anonymizes(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	_, err := st.subscriptions.SetTier(ctx, alice.ID, "premium")
	require.NoError(t, err)

	bobPost := st.post(t, bob.ID, "Lentil soup")
	alicePost := st.post(t, alice.ID, "My last post")
	_, err = st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: bobPost.ID, Content: "Looks great"})
	require.NoError(t, err)
	_, err = st.posts.Like(ctx, bobPost.ID, alice.ID)
	require.NoError(t, err)
	_, err = st.follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = st.follows.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	require.NoError(t, st.accounts.DeleteAccount(ctx, alice.ID, DeleteConfirmation))

	var row models.User
	require.NoError(t, st.db.First(&row, alice.ID).Error, "the user row is kept")
	assert.Equal(t, fmt.Sprintf("deleted_%d", alice.ID), row.Username)
	assert.Equal(t, fmt.Sprintf("deleted_%d@deleted.plantspack.local", alice.ID), row.Email)
	assert.NotNil(t, row.AnonymizedAt)
	assert.False(t, row.IsAdmin)
	assert.Equal(t, models.TierFree, row.Tier)

	_, err = st.posts.GetPost(ctx, alicePost.ID, bob.ID)
	assertCode(t, err, models.CodeNotFound)
	var deleted models.Post
	require.NoError(t, st.db.Unscoped().First(&deleted, alicePost.ID).Error)
	assert.True(t, deleted.DeletedAt.Valid)

	got, err := st.posts.GetPost(ctx, bobPost.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikesCount)
	assert.Zero(t, got.CommentsCount)

	followers, err := st.follows.Followers(ctx, bob.ID, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, followers)

	sub, err := st.subscriptions.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)

	_, err = st.userSvc.Authenticate(ctx, "alice@plantspack.test", "x")
	assertCode(t, err, models.CodeUnauthorized)

	err = st.accounts.DeleteAccount(ctx, alice.ID, DeleteConfirmation)
	assertCode(t, err, models.CodeConflict)
}

func TestDeleteAccount_RefreshesCachedCountersOnOtherPosts(t *testing.T) {
	mr := withRedis(t)
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	bobPost := st.post(t, bob.ID, "Tofu scramble")
	_, err := st.posts.Like(ctx, bobPost.ID, alice.ID)
	require.NoError(t, err)
	_, err = st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: bobPost.ID, Content: "yum"})
	require.NoError(t, err)

	cached, err := st.posts.GetPost(ctx, bobPost.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), cached.LikesCount)
	require.Equal(t, int64(1), cached.CommentsCount)
	require.True(t, mr.Exists(cache.PostKey(bobPost.ID)))

	require.NoError(t, st.accounts.DeleteAccount(ctx, alice.ID, DeleteConfirmation))
	assert.False(t, mr.Exists(cache.PostKey(bobPost.ID)))

	got, err := st.posts.GetPost(ctx, bobPost.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikesCount)
	assert.Zero(t, got.CommentsCount)
}

func TestDeleteUserContent_RefreshesCachedCommentCount(t *testing.T) {
	mr := withRedis(t)
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	bobPost := st.post(t, bob.ID, "Oat milk flat white")
	_, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: bobPost.ID, Content: "nice"})
	require.NoError(t, err)
	_, err = st.posts.GetPost(ctx, bobPost.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.PostKey(bobPost.ID)))

	_, _, err = st.accounts.DeleteUserContent(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(bobPost.ID)))

	got, err := st.posts.GetPost(ctx, bobPost.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CommentsCount)
}

func TestDeleteUserContent(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	st.post(t, alice.ID, "one")
	st.post(t, alice.ID, "two")
	bobPost := st.post(t, bob.ID, "three")
	_, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: bobPost.ID, Content: "nice"})
	require.NoError(t, err)

	posts, comments, err := st.accounts.DeleteUserContent(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), posts)
	assert.Equal(t, int64(1), comments)

	got, err := st.posts.GetPost(ctx, bobPost.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CommentsCount)

	_, _, err = st.accounts.DeleteUserContent(ctx, 999)
	assertCode(t, err, models.CodeNotFound)
}

func TestExportAndRender(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	post := st.post(t, alice.ID, "Miso glazed aubergine #dinner")
	_, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: post.ID, Content: "recipe in bio"})
	require.NoError(t, err)
	_, err = st.follows.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	export, err := st.accounts.Export(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", export.Profile.Username)
	assert.Equal(t, "alice@plantspack.test", export.Profile.Email)
	assert.Equal(t, "free", export.Profile.Tier)
	require.Len(t, export.Posts, 1)
	assert.Equal(t, post.Content, export.Posts[0].Content)
	assert.Equal(t, "public", export.Posts[0].Visibility)
	assert.Len(t, export.Comments, 1)
	assert.Equal(t, []string{"bob"}, export.Followers)
	assert.Empty(t, export.Following)
	assert.Equal(t, "active", export.Subscription.Status)

	body, contentType, err := Render(export, "json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Contains(t, decoded, "profile")
	assert.NotContains(t, string(body), "password")

	body, contentType, err = Render(export, "YAML")
	require.NoError(t, err)
	assert.Equal(t, "application/yaml", contentType)
	var fromYAML struct {
		Profile struct {
			Username string `yaml:"username"`
		} `yaml:"profile"`
		ExportedAt time.Time `yaml:"exported_at"`
	}
	require.NoError(t, yaml.Unmarshal(body, &fromYAML))
	assert.Equal(t, "alice", fromYAML.Profile.Username)
	assert.False(t, fromYAML.ExportedAt.IsZero())

	_, _, err = Render(export, "xml")
	assertCode(t, err, models.CodeValidation)
}
