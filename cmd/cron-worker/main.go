package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/porter-backend/internal/achievements"
	"github.com/angelmondragon/porter-backend/internal/cron"
	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/internal/rewards"
	"github.com/angelmondragon/porter-backend/pkg/config"
	"github.com/angelmondragon/porter-backend/pkg/db"
	"github.com/angelmondragon/porter-backend/pkg/instance"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/metrics"
	"github.com/angelmondragon/porter-backend/pkg/migrate"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instanceId":  instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	gormDB := dbClient.DB()
	rewardMetrics := metrics.NewRewardMetrics(prometheus.DefaultRegisterer)

	notificationsRepo := notifications.NewRepository(gormDB)
	notifier, err := notifications.NewNotifier(notificationsRepo, redisClient, logg)
	if err != nil {
		return err
	}
	ledger, err := rewards.NewLedger(rewards.LedgerParams{
		DB:       dbClient,
		Notifier: notifier,
		Metrics:  rewardMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	achievementsRepo := achievements.NewRepository(gormDB)
	achievementsSvc, err := achievements.NewService(achievements.ServiceParams{
		DB:         dbClient,
		Repository: achievementsRepo,
		Ledger:     ledger,
		Outbox:     outbox.NewService(outbox.NewRepository(gormDB), logg),
		Notifier:   notifier,
		Cache:      redisClient,
		CatalogTTL: cfg.Rewards.CatalogTTL,
		Metrics:    rewardMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notificationsRepo,
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(gormDB),
		Retention:   cfg.Cron.OutboxRetention,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}
	sweep, err := cron.NewAchievementSweepJob(cron.AchievementSweepJobParams{
		Logger:   logg,
		Users:    achievementsRepo,
		Checker:  achievementsSvc,
		Lookback: cfg.Cron.SweepLookback,
	})
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(cleanup, retention, sweep)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}
