package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"plantspack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestPostRepository_FeedHonorsVisibilityBlocksAndMutes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	viewer := createUser(t, db, "viewer")
	friend := createUser(t, db, "friend")
	stranger := createUser(t, db, "stranger")
	blocked := createUser(t, db, "blocked")
	muted := createUser(t, db, "muted")

	require.NoError(t, db.Create(&models.Follow{FollowerID: viewer.ID, FollowingID: friend.ID}).Error)
	require.NoError(t, db.Create(&models.UserBlock{BlockerID: blocked.ID, BlockedID: viewer.ID}).Error)
	require.NoError(t, db.Create(&models.UserMute{MuterID: viewer.ID, MutedID: muted.ID}).Error)

	own := createPost(t, db, viewer.ID, "mine")
	friendPrivate := &models.Post{UserID: friend.ID, Content: "for followers", Visibility: models.VisibilityFollowers}
	require.NoError(t, db.Create(friendPrivate).Error)
	strangerPublic := createPost(t, db, stranger.ID, "hello")
	strangerPrivate := &models.Post{UserID: stranger.ID, Content: "secret", Visibility: models.VisibilityFollowers}
	require.NoError(t, db.Create(strangerPrivate).Error)
	createPost(t, db, blocked.ID, "hidden by block")
	createPost(t, db, muted.ID, "hidden by mute")
	deleted := createPost(t, db, stranger.ID, "gone")
	require.NoError(t, repo.Delete(ctx, deleted.ID))

	posts, err := repo.ListFeed(ctx, FeedQuery{ViewerID: viewer.ID, Sort: SortRecent, Limit: 50})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{own.ID, friendPrivate.ID, strangerPublic.ID}, postIDs(posts))

	following, err := repo.ListFeed(ctx, FeedQuery{ViewerID: viewer.ID, Sort: SortFollowing, Limit: 50})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{own.ID, friendPrivate.ID}, postIDs(following))

	anon, err := repo.ListFeed(ctx, FeedQuery{Sort: SortRecent, Limit: 50})
	require.NoError(t, err)
	assert.NotContains(t, postIDs(anon), friendPrivate.ID)
	assert.NotContains(t, postIDs(anon), strangerPrivate.ID)
}

func TestPostRepository_PopularOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	u := createUser(t, db, "chard")
	low := createPost(t, db, u.ID, "low")
	high := createPost(t, db, u.ID, "high")
	require.NoError(t, db.Model(high).Update("engagement_score", 10).Error)

	posts, err := repo.ListFeed(ctx, FeedQuery{Sort: SortPopular, Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, high.ID, posts[0].ID)
	assert.Equal(t, low.ID, posts[1].ID)
}

func TestPostRepository_SearchAndMarkLiked(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	u := createUser(t, db, "kale")
	match := createPost(t, db, u.ID, "Best Kale Chips ever")
	createPost(t, db, u.ID, "oat milk latte")
	createPost(t, db, u.ID, "100% cocoa")

	posts, err := repo.Search(ctx, "kale chips", 0, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{match.ID}, postIDs(posts))

	// Wildcards in the query are literal.
	posts, err = repo.Search(ctx, "0%", 0, 10, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	require.NoError(t, db.Create(&models.Reaction{UserID: u.ID, TargetType: models.TargetPost, TargetID: match.ID, Type: models.ReactionLike}).Error)
	posts, err = repo.Search(ctx, "kale", u.ID, 10, 0)
	require.NoError(t, err)
	require.NoError(t, repo.MarkLiked(ctx, u.ID, posts))
	assert.True(t, posts[0].Liked)
}

func TestPostRepository_ListFeedQueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts"`)).WillReturnError(errors.New("connection reset"))

	_, err := repo.ListFeed(context.Background(), FeedQuery{Sort: SortRecent})
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
