package service

import (
	"context"
	"testing"

	"plantspack/internal/models"
	"plantspack/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollow_SingleNotificationAcrossRefollows(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	res, err := st.follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	res, err = st.follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed, "second follow is a no-op")

	_, err = st.follows.Unfollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = st.follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	list, err := st.notifications.List(ctx, bob.ID, false, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationFollow, list[0].Type)
	assert.Equal(t, alice.ID, list[0].ActorID)
	assert.False(t, list[0].IsRead)

	assert.Equal(t, 2, st.publisher.count(notifications.EventFollowCreated))
}

func TestFollow_Rules(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	_, err := st.follows.Follow(ctx, alice.ID, alice.ID)
	assertCode(t, err, models.CodeValidation)

	_, err = st.follows.Follow(ctx, alice.ID, 9999)
	assertCode(t, err, models.CodeNotFound)

	_, err = st.moderation.Block(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = st.follows.Follow(ctx, alice.ID, bob.ID)
	assertCode(t, err, models.CodeForbidden)
}

func TestFollow_ListsHideEmail(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	_, err := st.follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	followers, err := st.follows.Followers(ctx, bob.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)
	assert.Empty(t, followers[0].Email)

	following, err := st.follows.Following(ctx, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "bob", following[0].Username)
}

func TestNotify_SkipsSelfAndBlocked(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	n, err := st.notifications.Notify(ctx, NotifyInput{RecipientID: alice.ID, ActorID: alice.ID, Type: models.NotificationLike})
	require.NoError(t, err)
	assert.Nil(t, n)

	_, err = st.moderation.Block(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	n, err = st.notifications.Notify(ctx, NotifyInput{RecipientID: alice.ID, ActorID: bob.ID, Type: models.NotificationLike})
	require.NoError(t, err)
	assert.Nil(t, n)

	count, err := st.notifications.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, st.publisher.count(notifications.EventNotificationCreated))
}

func TestNotifications_MarkRead(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	first, err := st.notifications.Notify(ctx, NotifyInput{RecipientID: alice.ID, ActorID: bob.ID, Type: models.NotificationSystem, Message: "one"})
	require.NoError(t, err)
	_, err = st.notifications.Notify(ctx, NotifyInput{RecipientID: alice.ID, ActorID: bob.ID, Type: models.NotificationSystem, Message: "two"})
	require.NoError(t, err)

	require.NoError(t, st.notifications.MarkRead(ctx, alice.ID, first.ID))
	assertCode(t, st.notifications.MarkRead(ctx, bob.ID, first.ID), models.CodeNotFound)

	unread, err := st.notifications.List(ctx, alice.ID, true, 20, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "two", unread[0].Message)

	n, err := st.notifications.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
