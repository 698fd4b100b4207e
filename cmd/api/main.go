package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/porter-backend/api/routes"
	"github.com/angelmondragon/porter-backend/internal/achievements"
	"github.com/angelmondragon/porter-backend/internal/auth"
	"github.com/angelmondragon/porter-backend/internal/dispatch"
	"github.com/angelmondragon/porter-backend/internal/email"
	"github.com/angelmondragon/porter-backend/internal/leveling"
	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/internal/orders"
	"github.com/angelmondragon/porter-backend/internal/rewards"
	"github.com/angelmondragon/porter-backend/internal/users"
	"github.com/angelmondragon/porter-backend/pkg/auth/session"
	"github.com/angelmondragon/porter-backend/pkg/config"
	"github.com/angelmondragon/porter-backend/pkg/db"
	"github.com/angelmondragon/porter-backend/pkg/instance"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/metrics"
	"github.com/angelmondragon/porter-backend/pkg/migrate"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rewardMetrics := metrics.NewRewardMetrics(registry)

	dispatcher := dispatch.New(dispatch.Params{
		Timeout: cfg.Dispatch.TaskTimeout,
		Metrics: metrics.NewDispatchMetrics(registry),
		Logger:  logg,
	})

	sender, err := email.NewSenderFromConfig(ctx, cfg.Email, logg)
	if err != nil {
		return err
	}
	emailer := email.NewEmailer(sender)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	notifier, err := notifications.NewNotifier(notifications.NewRepository(gormDB), redisClient, logg)
	if err != nil {
		return err
	}
	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gormDB))
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

	ladder, err := leveling.NewLadderService(leveling.LadderParams{
		Repository: leveling.NewRepository(gormDB),
		Cache:      redisClient,
		CacheTTL:   cfg.Rewards.LadderCacheTTL,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	achievementsSvc, err := achievements.NewService(achievements.ServiceParams{
		DB:         dbClient,
		Repository: achievements.NewRepository(gormDB),
		Ledger:     ledger,
		Outbox:     outboxSvc,
		Notifier:   notifier,
		Cache:      redisClient,
		CatalogTTL: cfg.Rewards.CatalogTTL,
		Metrics:    rewardMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		DB:         dbClient,
		Repository: orders.NewRepository(gormDB),
		Outbox:     outboxSvc,
		Dispatcher: dispatcher,
		Rewards:    ledger,
		Notifier:   notifier,
		Emailer:    emailer,
		DeliveryXP: cfg.Rewards.DeliveryXP,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	usersSvc, err := users.NewService(usersRepo, ladder)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		UserRepo:         usersRepo,
		PasswordConfig:   cfg.Password,
		AllowAdminSignup: cfg.FeatureFlags.AllowAdminSignup && !cfg.App.IsProd(),
		Dispatcher:       dispatcher,
		Emailer:          emailer,
		Logger:           logg,
	})
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Sessions:       sessionManager,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Auth:           authService,
		Register:       registerService,
		Users:          usersSvc,
		UserFinder:     usersRepo,
		Ladder:         ladder,
		Orders:         ordersSvc,
		Achievements:   achievementsSvc,
		Notifications:  notificationsSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(logCtx, "shutting down api server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serverErr := server.Shutdown(shutdownCtx)

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Dispatch.ShutdownTimeout)
		defer cancelDrain()
		if err := dispatcher.Shutdown(drainCtx); err != nil {
			logg.Error(logCtx, "side effects still running at shutdown", err)
		}
		return serverErr
	})
	return group.Wait()
}
