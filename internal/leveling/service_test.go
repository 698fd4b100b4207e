package leveling

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/redis"
)

type stubRepo struct {
	listFn func(ctx context.Context, role enums.Role) ([]models.Level, error)
	calls  int
}

func (s *stubRepo) ListByRole(ctx context.Context, role enums.Role) ([]models.Level, error) {
	s.calls++
	if s.listFn != nil {
		return s.listFn(ctx, role)
	}
	return nil, nil
}

type memoryCache struct {
	data     map[string][]byte
	getErr   error
	setCalls int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dest any) error {
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.setCalls++
	c.data[key] = raw
	return nil
}

func (c *memoryCache) CacheKey(parts ...string) string {
	key := "test:cache"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func driverLadder() []models.Level {
	return []models.Level{
		{ID: uuid.New(), Name: "Rookie Driver", Role: enums.RoleDriver, RequiredTrips: 0},
		{ID: uuid.New(), Name: "Bronze Driver", Role: enums.RoleDriver, RequiredTrips: 10},
		{ID: uuid.New(), Name: "Silver Driver", Role: enums.RoleDriver, RequiredTrips: 50},
		{ID: uuid.New(), Name: "Gold Driver", Role: enums.RoleDriver, RequiredTrips: 100},
		{ID: uuid.New(), Name: "Platinum Driver", Role: enums.RoleDriver, RequiredTrips: 500},
	}
}

func newLadder(t *testing.T, repo Repository, cache Cache) LadderService {
	t.Helper()
	svc, err := NewLadderService(LadderParams{Repository: repo, Cache: cache})
	require.NoError(t, err)
	return svc
}

func TestCurrentAndNextLevel(t *testing.T) {
	levels := driverLadder()
	repo := &stubRepo{listFn: func(context.Context, enums.Role) ([]models.Level, error) { return levels, nil }}
	svc := newLadder(t, repo, nil)
	ctx := context.Background()

	cases := []struct {
		trips   int
		current string
		next    string
	}{
		{trips: 0, current: "Rookie Driver", next: "Bronze Driver"},
		{trips: 9, current: "Rookie Driver", next: "Bronze Driver"},
		{trips: 10, current: "Bronze Driver", next: "Silver Driver"},
		{trips: 75, current: "Silver Driver", next: "Gold Driver"},
		{trips: 500, current: "Platinum Driver", next: "Platinum Driver"},
		{trips: 9000, current: "Platinum Driver", next: "Platinum Driver"},
	}
	for _, tc := range cases {
		current, err := svc.CurrentLevel(ctx, enums.RoleDriver, tc.trips)
		require.NoError(t, err)
		next, err := svc.NextLevel(ctx, enums.RoleDriver, tc.trips)
		require.NoError(t, err)
		assert.Equal(t, tc.current, current.Name, "trips=%d", tc.trips)
		assert.Equal(t, tc.next, next.Name, "trips=%d", tc.trips)
	}
}

func TestCurrentLevelFallsBackToLowestRung(t *testing.T) {
	levels := []models.Level{
		{ID: uuid.New(), Name: "Starter", Role: enums.RoleUser, RequiredTrips: 3},
		{ID: uuid.New(), Name: "Regular", Role: enums.RoleUser, RequiredTrips: 8},
	}
	repo := &stubRepo{listFn: func(context.Context, enums.Role) ([]models.Level, error) { return levels, nil }}
	svc := newLadder(t, repo, nil)

	current, err := svc.CurrentLevel(context.Background(), enums.RoleUser, 1)
	require.NoError(t, err)
	assert.Equal(t, "Starter", current.Name)
}

func TestLadderWithoutEntriesIsNotFound(t *testing.T) {
	svc := newLadder(t, &stubRepo{}, nil)

	_, err := svc.CurrentLevel(context.Background(), enums.RoleAdmin, 3)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestNegativeTripsRejected(t *testing.T) {
	svc := newLadder(t, &stubRepo{}, nil)

	_, err := svc.NextLevel(context.Background(), enums.RoleUser, -1)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestLadderIsServedFromCache(t *testing.T) {
	levels := driverLadder()
	repo := &stubRepo{listFn: func(context.Context, enums.Role) ([]models.Level, error) { return levels, nil }}
	cache := newMemoryCache()
	svc := newLadder(t, repo, cache)
	ctx := context.Background()

	first, err := svc.Ladder(ctx, enums.RoleDriver)
	require.NoError(t, err)
	second, err := svc.Ladder(ctx, enums.RoleDriver)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 1, cache.setCalls)
}

func TestCacheFailureFallsThroughToRepository(t *testing.T) {
	levels := driverLadder()
	repo := &stubRepo{listFn: func(context.Context, enums.Role) ([]models.Level, error) { return levels, nil }}
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	svc := newLadder(t, repo, cache)

	ladder, err := svc.Ladder(context.Background(), enums.RoleDriver)
	require.NoError(t, err)
	assert.Len(t, ladder, 5)
	assert.Equal(t, 1, repo.calls)
}

func TestRepositoryFailureIsDependencyError(t *testing.T) {
	repo := &stubRepo{listFn: func(context.Context, enums.Role) ([]models.Level, error) {
		return nil, errors.New("db down")
	}}
	svc := newLadder(t, repo, nil)

	_, err := svc.Ladder(context.Background(), enums.RoleUser)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestLevelByID(t *testing.T) {
	levels := driverLadder()
	repo := &stubRepo{listFn: func(context.Context, enums.Role) ([]models.Level, error) { return levels, nil }}
	svc := newLadder(t, repo, nil)
	ctx := context.Background()

	level, err := svc.Level(ctx, enums.RoleDriver, levels[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "Silver Driver", level.Name)

	_, err = svc.Level(ctx, enums.RoleDriver, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestStatusReportsTripsToNext(t *testing.T) {
	levels := driverLadder()
	repo := &stubRepo{listFn: func(context.Context, enums.Role) ([]models.Level, error) { return levels, nil }}
	svc := newLadder(t, repo, nil)

	status, err := svc.Status(context.Background(), enums.RoleDriver, 42)
	require.NoError(t, err)
	assert.Equal(t, "Bronze Driver", status.Current.Name)
	assert.Equal(t, "Silver Driver", status.Next.Name)
	assert.Equal(t, 8, status.TripsToNext)
}
