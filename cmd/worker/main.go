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
	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/internal/rewards"
	"github.com/angelmondragon/porter-backend/pkg/config"
	"github.com/angelmondragon/porter-backend/pkg/db"
	"github.com/angelmondragon/porter-backend/pkg/instance"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/metrics"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/porter-backend/pkg/pubsub"
	"github.com/angelmondragon/porter-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "worker stopped", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.Options{RequireSubscription: true}, logg)
	if err != nil {
		return err
	}
	defer pubsubClient.Close()

	gormDB := dbClient.DB()
	rewardMetrics := metrics.NewRewardMetrics(prometheus.DefaultRegisterer)

	notifier, err := notifications.NewNotifier(notifications.NewRepository(gormDB), redisClient, logg)
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
	achievementsSvc, err := achievements.NewService(achievements.ServiceParams{
		DB:         dbClient,
		Repository: achievements.NewRepository(gormDB),
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

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return err
	}
	consumer, err := achievements.NewConsumer(achievementsSvc, pubsubClient.DomainSubscription(), guard, logg)
	if err != nil {
		return err
	}

	id := instance.GetID()
	logg.Info(logg.WithField(ctx, "instance", id), "starting worker")

	svc, err := NewService(ServiceParams{
		Logger:     logg,
		InstanceID: id,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Consumers: map[string]runner{"achievements": consumer},
	})
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
