package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"plantspack/internal/models"
	"plantspack/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestRelevancyScore(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	fresh := &models.Post{CreatedAt: now}
	assert.InDelta(t, 0.3, RelevancyScore(fresh, now), 1e-9)

	dayOld := &models.Post{CreatedAt: now.Add(-24 * time.Hour), LikesCount: 3, CommentsCount: 1}
	assert.InDelta(t, 0.7*4+0.3*math.Exp(-1), RelevancyScore(dayOld, now), 1e-9)

	future := &models.Post{CreatedAt: now.Add(time.Hour)}
	assert.InDelta(t, 0.3, RelevancyScore(future, now), 1e-9)
}

func TestNormalizeSort(t *testing.T) {
	assert.Equal(t, SortRelevancy, NormalizeSort(""))
	assert.Equal(t, SortRelevancy, NormalizeSort("hot"))
	assert.Equal(t, repository.SortPopular, NormalizeSort("popular"))
	assert.Equal(t, repository.SortFollowing, NormalizeSort("following"))
}

func TestFeed_RelevancyRanksFirstPage(t *testing.T) {
	st := newTestStack(t, "relevancy_feed=on")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	carol := st.user(t, "carol")

	now := time.Now()
	old := st.post(t, alice.ID, "old but loved")
	require.NoError(t, st.db.Model(old).UpdateColumn("created_at", now.Add(-72*time.Hour)).Error)
	_, err := st.posts.Like(ctx, old.ID, bob.ID)
	require.NoError(t, err)
	_, err = st.posts.Like(ctx, old.ID, carol.ID)
	require.NoError(t, err)

	newest := st.post(t, alice.ID, "brand new")
	st.feed.now = func() time.Time { return now }

	res := st.feed.Feed(ctx, FeedQuery{ViewerID: bob.ID, Limit: 1})
	require.False(t, res.Degraded)
	assert.Equal(t, SortRelevancy, res.Sort)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, old.ID, res.Posts[0].ID)
	assert.True(t, res.Posts[0].Liked)
	require.NotNil(t, res.NextOffset)
	assert.Equal(t, 1, *res.NextOffset)

	res = st.feed.Feed(ctx, FeedQuery{ViewerID: bob.ID, Sort: "recent", Limit: 5})
	require.Len(t, res.Posts, 2)
	assert.Equal(t, newest.ID, res.Posts[0].ID)
	assert.Nil(t, res.NextOffset)
}

func TestFeed_FlagOffFallsBackToPopular(t *testing.T) {
	st := newTestStack(t, "relevancy_feed=off")
	alice := st.user(t, "alice")
	st.post(t, alice.ID, "hello")

	res := st.feed.Feed(context.Background(), FeedQuery{ViewerID: alice.ID, Sort: SortRelevancy})
	assert.Equal(t, repository.SortPopular, res.Sort)
	assert.Len(t, res.Posts, 1)
}

func TestFeed_FollowingAndMutes(t *testing.T) {
	st := newTestStack(t, "")
	ctx := context.Background()
	alice := st.user(t, "alice")
	bob := st.user(t, "bob")
	carol := st.user(t, "carol")
	st.post(t, alice.ID, "mine")
	st.post(t, bob.ID, "from bob")
	st.post(t, carol.ID, "from carol")

	_, err := st.follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	res := st.feed.Feed(ctx, FeedQuery{ViewerID: alice.ID, Sort: repository.SortFollowing})
	contents := []string{}
	for _, p := range res.Posts {
		contents = append(contents, p.Content)
	}
	assert.ElementsMatch(t, []string{"mine", "from bob"}, contents)

	_, err = st.moderation.Mute(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	res = st.feed.Feed(ctx, FeedQuery{ViewerID: alice.ID, Sort: repository.SortRecent})
	for _, p := range res.Posts {
		assert.NotEqual(t, carol.ID, p.UserID)
	}

	res = st.feed.Feed(ctx, FeedQuery{Sort: repository.SortFollowing})
	assert.Equal(t, repository.SortRecent, res.Sort, "anonymous viewers have no following feed")
}

func TestFeed_DegradesOnQueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	st := newStackOn(db, "relevancy_feed=on")

	mock.ExpectQuery(`SELECT (.+) FROM "posts"`).WillReturnError(errors.New("connection reset"))

	res := st.feed.Feed(context.Background(), FeedQuery{ViewerID: 7})
	assert.True(t, res.Degraded)
	assert.NotNil(t, res.Posts)
	assert.Empty(t, res.Posts)
	assert.Nil(t, res.NextOffset)
	require.NoError(t, mock.ExpectationsWereMet())
}
