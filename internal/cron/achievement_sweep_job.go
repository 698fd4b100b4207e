package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/porter-backend/internal/achievements"
	"github.com/angelmondragon/porter-backend/pkg/logger"
)

const (
	defaultSweepLookback = 24 * time.Hour
	defaultSweepLimit    = 500
)

type activeUserLister interface {
	UsersActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type achievementChecker interface {
	CheckAchievements(ctx context.Context, userID uuid.UUID) ([]achievements.Definition, error)
}

// AchievementSweepJobParams configure the reconciliation sweep.
type AchievementSweepJobParams struct {
	Logger   *logger.Logger
	Users    activeUserLister
	Checker  achievementChecker
	Lookback time.Duration
	Limit    int
}

// NewAchievementSweepJob re-evaluates achievements for everyone with a
// recent delivery. It catches unlocks whose event-driven check was lost;
// CheckAchievements skips already-owned entries, so repeated sweeps are safe.
func NewAchievementSweepJob(params AchievementSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("active user lister required")
	}
	if params.Checker == nil {
		return nil, fmt.Errorf("achievement checker required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultSweepLookback
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	return &achievementSweepJob{
		logg:     params.Logger,
		users:    params.Users,
		checker:  params.Checker,
		lookback: lookback,
		limit:    limit,
		now:      time.Now,
	}, nil
}

type achievementSweepJob struct {
	logg     *logger.Logger
	users    activeUserLister
	checker  achievementChecker
	lookback time.Duration
	limit    int
	now      func() time.Time
}

func (j *achievementSweepJob) Name() string { return "achievement-sweep" }

func (j *achievementSweepJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	ids, err := j.users.UsersActiveSince(ctx, since, j.limit)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	var errs error
	unlocked := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		defs, err := j.checker.CheckAchievements(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check achievements for %s: %w", id, err))
			continue
		}
		unlocked += len(defs)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"since":    since,
		"users":    len(ids),
		"unlocked": unlocked,
		"failed":   len(multierr.Errors(errs)),
	}), "achievement sweep complete")
	return errs
}
