package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 90 * 24 * time.Hour
	defaultOutboxRetention       = 30 * 24 * time.Hour
	outboxMinAttempts            = 5
)

// purgeJob deletes rows older than a retention window in one transaction.
type purgeJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	purge     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	fields    map[string]any
	now       func() time.Time
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.purge(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	fields := map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), j.name+" complete")
	return nil
}

func newPurgeJob(name string, logg *logger.Logger, db txRunner, retention, fallback time.Duration) (*purgeJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if retention <= 0 {
		retention = fallback
	}
	return &purgeJob{name: name, logg: logg, db: db, retention: retention, now: time.Now}, nil
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository interface {
		DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	}
	Retention time.Duration
}

// NewNotificationCleanupJob prunes notifications, read or not, past the
// retention window.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	job, err := newPurgeJob("notification-cleanup", params.Logger, params.DB, params.Retention, defaultNotificationRetention)
	if err != nil {
		return nil, err
	}
	job.purge = params.Repository.DeleteOlderThan
	return job, nil
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository interface {
		DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
	}
	Retention time.Duration
	// MinAttempts marks unpublished rows as abandoned; usually the
	// relay's max attempts.
	MinAttempts int
}

// NewOutboxRetentionJob deletes published outbox rows, and rows that
// exhausted their attempts, once they are older than the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job, err := newPurgeJob("outbox-retention", params.Logger, params.DB, params.Retention, defaultOutboxRetention)
	if err != nil {
		return nil, err
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	repo := params.Repository
	job.purge = func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return repo.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
	}
	job.fields = map[string]any{"min_attempts": minAttempts}
	return job, nil
}
