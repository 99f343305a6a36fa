package service

import (
	"context"
	"testing"

	"plantspack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComment_NotifiesAuthorParentAndMentions(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	carol := st.user(t, "carol")
	dave := st.user(t, "dave")
	post := st.post(t, alice.ID, "Chickpea curry")

	parent, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: post.ID, Content: "Recipe please"})
	require.NoError(t, err)

	reply, err := st.comments.CreateComment(ctx, CreateCommentInput{
		UserID:   carol.ID,
		PostID:   post.ID,
		ParentID: &parent.ID,
		Content:  "Seconded, cc @dave",
	})
	require.NoError(t, err)
	require.NotNil(t, reply.User)
	assert.Empty(t, reply.User.Email)

	aliceInbox, err := st.notifications.List(ctx, alice.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, aliceInbox, 2, "one per comment on her post")

	bobInbox, err := st.notifications.List(ctx, bob.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, bobInbox, 1)
	assert.Equal(t, models.NotificationReply, bobInbox[0].Type)

	daveInbox, err := st.notifications.List(ctx, dave.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, daveInbox, 1)
	assert.Equal(t, models.NotificationMention, daveInbox[0].Type)

	got, err := st.posts.GetPost(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CommentsCount)
}

func TestCreateComment_OwnCommentDoesNotNotify(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	post := st.post(t, alice.ID, "Overnight oats")

	_, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: post.ID, Content: "Update: add chia"})
	require.NoError(t, err)

	count, err := st.notifications.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateComment_Validation(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	post := st.post(t, alice.ID, "one")
	other := st.post(t, alice.ID, "two")

	_, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: post.ID, Content: " "})
	assertCode(t, err, models.CodeValidation)

	_, err = st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: 999, Content: "hi"})
	assertCode(t, err, models.CodeNotFound)

	c, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: post.ID, Content: "hi"})
	require.NoError(t, err)
	_, err = st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: other.ID, ParentID: &c.ID, Content: "wrong thread"})
	assertCode(t, err, models.CodeValidation)

	_, err = st.comments.CreateComment(ctx, CreateCommentInput{UserID: alice.ID, PostID: post.ID, Content: "slur"})
	assertCode(t, err, models.CodeBlocked)
}

func TestUpdateDeleteComment_Ownership(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	post := st.post(t, alice.ID, "Tempeh bowl")

	c, err := st.comments.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: post.ID, Content: "Yum"})
	require.NoError(t, err)

	_, err = st.comments.UpdateComment(ctx, c.ID, alice.ID, "edited by alice")
	assertCode(t, err, models.CodeForbidden)
	updated, err := st.comments.UpdateComment(ctx, c.ID, bob.ID, "Yum!!")
	require.NoError(t, err)
	assert.Equal(t, "Yum!!", updated.Content)

	assertCode(t, st.comments.DeleteComment(ctx, c.ID, alice.ID), models.CodeForbidden)
	require.NoError(t, st.comments.DeleteComment(ctx, c.ID, bob.ID))

	list, err := st.comments.ListComments(ctx, post.ID, alice.ID, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := st.posts.GetPost(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CommentsCount)
}
