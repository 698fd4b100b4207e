package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/porter-backend/internal/achievements"
	"github.com/angelmondragon/porter-backend/pkg/logger"
)

type stubActiveUsers struct {
	ids      []uuid.UUID
	err      error
	gotSince time.Time
	gotLimit int
}

func (s *stubActiveUsers) UsersActiveSince(_ context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	s.gotSince = since
	s.gotLimit = limit
	return s.ids, s.err
}

type stubChecker struct {
	checkFn func(ctx context.Context, userID uuid.UUID) ([]achievements.Definition, error)
	checked []uuid.UUID
}

func (s *stubChecker) CheckAchievements(ctx context.Context, userID uuid.UUID) ([]achievements.Definition, error) {
	s.checked = append(s.checked, userID)
	return s.checkFn(ctx, userID)
}

func newSweepJob(t *testing.T, users *stubActiveUsers, checker *stubChecker) *achievementSweepJob {
	t.Helper()
	job, err := NewAchievementSweepJob(AchievementSweepJobParams{
		Logger:   logger.Nop(),
		Users:    users,
		Checker:  checker,
		Lookback: 6 * time.Hour,
		Limit:    50,
	})
	require.NoError(t, err)
	return job.(*achievementSweepJob)
}

func TestAchievementSweepChecksEveryActiveUser(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	a, b := uuid.New(), uuid.New()
	users := &stubActiveUsers{ids: []uuid.UUID{a, b}}
	checker := &stubChecker{checkFn: func(context.Context, uuid.UUID) ([]achievements.Definition, error) {
		return []achievements.Definition{{Title: "First Delivery"}}, nil
	}}
	job := newSweepJob(t, users, checker)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-6*time.Hour), users.gotSince)
	assert.Equal(t, 50, users.gotLimit)
	assert.Equal(t, []uuid.UUID{a, b}, checker.checked)
}

func TestAchievementSweepContinuesPastFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	checker := &stubChecker{checkFn: func(_ context.Context, id uuid.UUID) ([]achievements.Definition, error) {
		if id == a || id == c {
			return nil, errors.New("db timeout")
		}
		return nil, nil
	}}
	job := newSweepJob(t, &stubActiveUsers{ids: []uuid.UUID{a, b, c}}, checker)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Len(t, checker.checked, 3)
}

func TestAchievementSweepListFailure(t *testing.T) {
	checker := &stubChecker{}
	job := newSweepJob(t, &stubActiveUsers{err: errors.New("boom")}, checker)

	assert.ErrorContains(t, job.Run(context.Background()), "list active users")
	assert.Empty(t, checker.checked)
}
