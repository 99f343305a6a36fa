package repository

import (
	"context"
	"regexp"
	"testing"

	"plantspack/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedName string
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email"}).
					AddRow(1, "testuser", "test@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedName: "testuser",
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, models.ErrorCode(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedName, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicateIsConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "olive", Email: "olive@plantspack.test", Password: "x"}))
	err := repo.Create(ctx, &models.User{Username: "olive", Email: "other@plantspack.test", Password: "x"})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
}

func TestUserRepository_LookupsAndSearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createUser(t, db, "pepper")
	createUser(t, db, "peppermint")
	createUser(t, db, "quinoa")

	u, err := repo.GetByUsername(ctx, "PEPPER")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "pepper", u.Username)

	missing, err := repo.GetByEmail(ctx, "nobody@plantspack.test")
	require.NoError(t, err)
	assert.Nil(t, missing)

	hits, err := repo.SearchByPrefix(ctx, "pep", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	users, total, err := repo.List(ctx, "quin", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, users, 1)

	require.NoError(t, repo.PopulateCounts(ctx, u))
	assert.Equal(t, int64(0), u.FollowersCount)
}
