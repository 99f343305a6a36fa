package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"plantspack/internal/cache"
	"plantspack/internal/models"
	"plantspack/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost_ExtractsHashtagsAndMentions(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	post := st.post(t, alice.ID, "Lentil soup night #Vegan #soup with @Bob and @ghost_user #vegan")
	assert.Equal(t, []string{"vegan", "soup"}, post.Hashtags)
	require.NotNil(t, post.User)
	assert.Empty(t, post.User.Email)

	got, err := st.posts.GetPost(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vegan", "soup"}, got.Hashtags)

	list, err := st.notifications.List(ctx, bob.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationMention, list[0].Type)
	assert.Equal(t, post.ID, list[0].TargetID)

	assert.Equal(t, 1, st.publisher.count(notifications.EventPostCreated))
}

func TestCreatePost_BlockedContentWritesNothing(t *testing.T) {
	st := newTestStack(t, "")
	alice := st.user(t, "alice")

	_, err := st.posts.CreatePost(context.Background(), CreatePostInput{UserID: alice.ID, Content: "this has a SLUR in it"})
	assertCode(t, err, models.CodeBlocked)

	var n int64
	require.NoError(t, st.db.Model(&models.Post{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, st.publisher.count(notifications.EventPostCreated))
}

func TestCreatePost_TierLimits(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")

	long := strings.Repeat("a", 501)
	_, err := st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: long})
	assertCode(t, err, models.CodeValidation)

	_, err = st.subscriptions.SetTier(ctx, alice.ID, "medium")
	require.NoError(t, err)
	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: long})
	require.NoError(t, err)

	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: strings.Repeat("é", 1001)})
	assertCode(t, err, models.CodeValidation)
}

func TestCreatePost_Validation(t *testing.T) {
	st := newTestStack(t, "video_posts=tier:premium")
	ctx := context.Background()
	alice := st.user(t, "alice")

	_, err := st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "  "})
	assertCode(t, err, models.CodeValidation)

	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "pics", ImageURLs: []string{"a", "b", "c", "d", "e"}})
	assertCode(t, err, models.CodeValidation)

	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "hi", Visibility: "friends"})
	assertCode(t, err, models.CodeValidation)

	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "clip", VideoURL: "https://cdn/v.mp4"})
	assertCode(t, err, models.CodeForbidden)

	_, err = st.subscriptions.SetTier(ctx, alice.ID, "premium")
	require.NoError(t, err)
	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "clip", VideoURL: "https://cdn/v.mp4"})
	require.NoError(t, err)

	require.NoError(t, st.moderation.SetBanned(ctx, alice.ID, true))
	_, err = st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "still here"})
	assertCode(t, err, models.CodeForbidden)
}

func TestGetPost_FollowersOnlyVisibility(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")

	post, err := st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "friends only", Visibility: models.VisibilityFollowers})
	require.NoError(t, err)
	assert.Zero(t, st.publisher.count(notifications.EventPostCreated), "followers-only posts are not broadcast")

	_, err = st.posts.GetPost(ctx, post.ID, bob.ID)
	assertCode(t, err, models.CodeNotFound)
	_, err = st.posts.GetPost(ctx, post.ID, 0)
	assertCode(t, err, models.CodeNotFound)

	_, err = st.follows.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	got, err := st.posts.GetPost(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "friends only", got.Content)
}

func TestLike_IsIdempotent(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	post := st.post(t, alice.ID, "tofu scramble")

	res, err := st.posts.Like(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LikesCount)
	assert.True(t, res.Reacted)

	res, err = st.posts.Like(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LikesCount)

	list, err := st.notifications.List(ctx, alice.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	res, err = st.posts.Unlike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, res.LikesCount)
	assert.False(t, res.Reacted)

	res, err = st.posts.Unlike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, res.LikesCount)
}

func TestLike_ReactionCountsReachOnlyThePostAudience(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	st.user(t, "carol")

	_, err := st.follows.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	private, err := st.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, Content: "friends only", Visibility: models.VisibilityFollowers})
	require.NoError(t, err)
	_, err = st.posts.Like(ctx, private.ID, bob.ID)
	require.NoError(t, err)

	var recipients []uint
	for _, e := range st.publisher.events {
		if e.Type != notifications.EventPostReactionUpdated {
			continue
		}
		require.NotZero(t, e.UserID, "followers-only counts are never broadcast")
		recipients = append(recipients, e.UserID)
		counts := e.Payload.(*ReactionResult)
		assert.False(t, counts.Reacted, "the actor's own state stays in the response")
		assert.Equal(t, int64(1), counts.LikesCount)
	}
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, recipients)

	public := st.post(t, alice.ID, "everyone welcome")
	before := st.publisher.count(notifications.EventPostReactionUpdated)
	_, err = st.posts.Like(ctx, public.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, st.publisher.count(notifications.EventPostReactionUpdated))
	last := st.publisher.events[len(st.publisher.events)-1]
	assert.Zero(t, last.UserID, "public counts are broadcast")
}

func TestReact_ReplacesType(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	post := st.post(t, alice.ID, "seitan recipe")

	_, err := st.posts.React(ctx, post.ID, bob.ID, "angry")
	assertCode(t, err, models.CodeValidation)

	_, err = st.posts.React(ctx, post.ID, bob.ID, models.ReactionLove)
	require.NoError(t, err)
	res, err := st.posts.React(ctx, post.ID, bob.ID, models.ReactionHelpful)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionHelpful, res.Type)
	assert.Equal(t, int64(1), res.LikesCount)
	assert.Equal(t, map[models.ReactionType]int64{models.ReactionHelpful: 1}, res.Counts)
}

func TestUpdateAndDeletePost_Ownership(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	admin := st.user(t, "root")
	_, err := st.userSvc.SetAdmin(ctx, admin.ID, true)
	require.NoError(t, err)
	post := st.post(t, alice.ID, "first #draft")

	_, err = st.posts.UpdatePost(ctx, UpdatePostInput{UserID: bob.ID, PostID: post.ID, Content: "hijack"})
	assertCode(t, err, models.CodeForbidden)

	updated, err := st.posts.UpdatePost(ctx, UpdatePostInput{UserID: alice.ID, PostID: post.ID, Content: "edited #final"})
	require.NoError(t, err)
	assert.Equal(t, []string{"final"}, updated.Hashtags)

	assertCode(t, st.posts.DeletePost(ctx, post.ID, bob.ID), models.CodeForbidden)
	require.NoError(t, st.posts.DeletePost(ctx, post.ID, admin.ID))
	_, err = st.posts.GetPost(ctx, post.ID, alice.ID)
	assertCode(t, err, models.CodeNotFound)
	assert.Equal(t, 1, st.publisher.count(notifications.EventPostDeleted))
}

func TestSearch_ShortQueryReturnsEmpty(t *testing.T) {
	db, mock := setupMockDB(t)
	st := newStackOn(db, "")

	posts, err := st.posts.Search(context.Background(), " ab ", 0, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_MatchesContent(t *testing.T) {
	st := newTestStack(t, "")
	alice := st.user(t, "alice")
	st.post(t, alice.ID, "Best jackfruit tacos")
	st.post(t, alice.ID, "Oat milk latte")

	posts, err := st.posts.Search(context.Background(), "JACKFRUIT", 0, 20, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Content, "jackfruit")
}

func TestDrafts(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")

	_, err := st.posts.GetDraft(ctx, alice.ID)
	assertCode(t, err, models.CodeUnavailable)

	mr := withRedis(t)
	d, err := st.posts.GetDraft(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, d)

	saved, err := st.posts.SaveDraft(ctx, alice.ID, Draft{Content: "half-written", ImageURLs: []string{"u1"}})
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.Greater(t, mr.TTL(cache.DraftKey(alice.ID)), time.Duration(0))

	d, err = st.posts.GetDraft(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "half-written", d.Content)

	require.NoError(t, st.posts.DeleteDraft(ctx, alice.ID))
	d, err = st.posts.GetDraft(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestExtractHashtagsAndMentions(t *testing.T) {
	assert.Equal(t, []string{"plantbased", "zero_waste", "ñandú"},
		ExtractHashtags("#PlantBased and #zero_waste, #ñandú! not&#35;entity or mail#tag"))
	assert.Equal(t, []string{"green_leaf", "bob"},
		ExtractMentions("hey @Green_Leaf and @bob, not an email like a@b.co or @x"))
}

func TestExtractHashtags_DropsOverlongTags(t *testing.T) {
	long := strings.Repeat("a", 60)
	exact := strings.Repeat("b", 50)
	assert.Empty(t, ExtractHashtags("hi #"+long))
	assert.Equal(t, []string{exact, "kale"}, ExtractHashtags("#"+exact+" #"+long+" #kale"))
}

func TestExtractMentions_RequiresUsernameBoundary(t *testing.T) {
	assert.Empty(t, ExtractMentions("ping @bob_ and @carol- please"))
	assert.Equal(t, []string{"bob"}, ExtractMentions("ping @bob_ or @bob."))
	assert.Empty(t, ExtractMentions("@"+strings.Repeat("x", 31)))
}
