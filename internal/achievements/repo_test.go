package achievements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
)

func TestRepositoryUsersActiveSince(t *testing.T) {
	f := newFixture(t, nil)
	repo := NewRepository(f.conn)
	owner := f.seedUser(t, 0, 1, 0)
	driver := f.seedUser(t, 0, 1, 0)
	idle := f.seedUser(t, 0, 1, 0)

	now := time.Now().UTC()
	recent := now.Add(-time.Hour)
	old := now.Add(-72 * time.Hour)
	seedOrder := func(userID uuid.UUID, driverID *uuid.UUID, deliveredAt *time.Time) {
		order := models.Order{
			UserID:            userID,
			DriverID:          driverID,
			PickupAddress:     "1 Main St",
			PickupContact:     "5551234567",
			DeliveryAddress:   "2 Side St",
			DeliveryContact:   "5557654321",
			PackageType:       enums.PackageTypeParcel,
			Weight:            decimal.NewFromInt(2),
			Priority:          enums.OrderPriorityStandard,
			ScheduledDate:     now,
			EstimatedDelivery: now.Add(48 * time.Hour),
			Cost:              decimal.NewFromInt(17),
			Status:            enums.OrderStatusDelivered,
			DeliveredAt:       deliveredAt,
		}
		require.NoError(t, f.conn.Create(&order).Error)
	}
	seedOrder(owner.ID, &driver.ID, &recent)
	seedOrder(owner.ID, nil, &recent)
	seedOrder(idle.ID, nil, &old)

	ids, err := repo.UsersActiveSince(context.Background(), now.Add(-24*time.Hour), 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{owner.ID, driver.ID}, ids)

	ids, err = repo.UsersActiveSince(context.Background(), now.Add(-24*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestRepositoryOwnedIDsAndInsert(t *testing.T) {
	f := newFixture(t, nil)
	repo := NewRepository(f.conn)
	user := f.seedUser(t, 0, 1, 0)
	a := f.seedAchievement(t, "One", 10, XPEarned{XP: 1}, time.Now().UTC())
	b := f.seedAchievement(t, "Two", 10, XPEarned{XP: 2}, time.Now().UTC())

	require.NoError(t, repo.InsertOwned(context.Background(), nil, nil))
	require.NoError(t, repo.InsertOwned(context.Background(), nil, []models.UserAchievement{
		{UserID: user.ID, AchievementID: a.ID, UnlockedAt: time.Now().UTC()},
		{UserID: user.ID, AchievementID: b.ID, UnlockedAt: time.Now().UTC()},
	}))

	owned, err := repo.OwnedIDs(context.Background(), nil, user.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
	assert.Contains(t, owned, a.ID)

	err = repo.InsertOwned(context.Background(), nil, []models.UserAchievement{
		{UserID: user.ID, AchievementID: a.ID, UnlockedAt: time.Now().UTC()},
	})
	assert.Error(t, err)
}
