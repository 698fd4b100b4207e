package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/porter-backend/pkg/db/dbtest"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
)

func seedNotification(t *testing.T, repo Repository, userID uuid.UUID, created time.Time) models.Notification {
	t.Helper()
	n := models.Notification{
		UserID:    userID,
		Type:      enums.NotificationLevelUp,
		Title:     "Level up!",
		Message:   "You reached level 2.",
		CreatedAt: created,
	}
	require.NoError(t, repo.Create(context.Background(), &n))
	return n
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	oldest := seedNotification(t, repo, userID, base)
	middle := seedNotification(t, repo, userID, base.Add(time.Minute))
	newest := seedNotification(t, repo, userID, base.Add(2*time.Minute))
	seedNotification(t, repo, uuid.New(), base.Add(3*time.Minute))

	page, next, err := repo.List(ctx, listNotificationsParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, newest.ID, page[0].ID)
	assert.Equal(t, middle.ID, page[1].ID)
	require.NotNil(t, next)

	page, next, err = repo.List(ctx, listNotificationsParams{UserID: userID, Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, oldest.ID, page[0].ID)
	assert.Nil(t, next)
}

func TestRepositoryMarkReadAndCleanup(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := seedNotification(t, repo, userID, now.Add(-100*24*time.Hour))
	fresh := seedNotification(t, repo, userID, now.Add(-time.Hour))

	res, err := repo.MarkRead(ctx, userID, fresh.ID, now)
	require.NoError(t, err)
	assert.True(t, res.Updated)

	res, err = repo.MarkRead(ctx, userID, fresh.ID, now)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.True(t, res.Found)

	res, err = repo.MarkRead(ctx, uuid.New(), fresh.ID, now)
	require.NoError(t, err)
	assert.False(t, res.Found)

	count, err := repo.MarkAllRead(ctx, userID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	deleted, err := repo.DeleteOlderThan(ctx, conn, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.Notification
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.NotEqual(t, old.ID, remaining[0].ID)
}
