package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeNotificationRepo struct {
	lastCutoff time.Time
	rows       int64
	err        error
	called     int
}

func (f *fakeNotificationRepo) DeleteOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	return f.rows, f.err
}

type fakeOutboxRetentionRepo struct {
	lastCutoff  time.Time
	minAttempts int
	err         error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.lastCutoff = cutoff
	f.minAttempts = minAttemptCount
	return 3, f.err
}

func asPurgeJob(t *testing.T) func(Job, error) *purgeJob {
	return func(job Job, err error) *purgeJob {
		t.Helper()
		require.NoError(t, err)
		typed, ok := job.(*purgeJob)
		require.True(t, ok)
		return typed
	}
}

func TestNotificationCleanupUsesRetentionWindow(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	repo := &fakeNotificationRepo{rows: 42}
	job := asPurgeJob(t)(NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.Nop(),
		DB:         fakeTxRunner{},
		Repository: repo,
		Retention:  7 * 24 * time.Hour,
	}))
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, repo.called)
	assert.Equal(t, now.AddDate(0, 0, -7), repo.lastCutoff)
	assert.Equal(t, "notification-cleanup", job.Name())
}

func TestNotificationCleanupDefaultsRetention(t *testing.T) {
	job := asPurgeJob(t)(NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.Nop(),
		DB:         fakeTxRunner{},
		Repository: &fakeNotificationRepo{},
	}))
	assert.Equal(t, defaultNotificationRetention, job.retention)
}

func TestNotificationCleanupPropagatesErrors(t *testing.T) {
	job := asPurgeJob(t)(NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.Nop(),
		DB:         fakeTxRunner{},
		Repository: &fakeNotificationRepo{err: errors.New("boom")},
	}))
	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "notification-cleanup")
	assert.ErrorContains(t, err, "boom")
}

func TestOutboxRetentionDefaults(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job := asPurgeJob(t)(NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         fakeTxRunner{},
		Repository: repo,
	}))
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-defaultOutboxRetention), repo.lastCutoff)
	assert.Equal(t, outboxMinAttempts, repo.minAttempts)
}

func TestOutboxRetentionHonorsMinAttempts(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{}
	job := asPurgeJob(t)(NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.Nop(),
		DB:          fakeTxRunner{},
		Repository:  repo,
		MinAttempts: 10,
	}))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 10, repo.minAttempts)
}

func TestPurgeJobsRequireDependencies(t *testing.T) {
	_, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: logger.Nop(), DB: fakeTxRunner{}})
	assert.ErrorContains(t, err, "repository")
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{DB: fakeTxRunner{}, Repository: &fakeOutboxRetentionRepo{}})
	assert.ErrorContains(t, err, "logger")
}
