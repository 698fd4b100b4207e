package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/porter-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/porter-backend/api/controllers/orders"
	"github.com/angelmondragon/porter-backend/api/middleware"
	"github.com/angelmondragon/porter-backend/internal/achievements"
	"github.com/angelmondragon/porter-backend/internal/auth"
	"github.com/angelmondragon/porter-backend/internal/leveling"
	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/internal/orders"
	"github.com/angelmondragon/porter-backend/internal/users"
	"github.com/angelmondragon/porter-backend/pkg/auth/session"
	"github.com/angelmondragon/porter-backend/pkg/config"
	"github.com/angelmondragon/porter-backend/pkg/db"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/metrics"
)

// Store is the Redis surface used by the HTTP layer: readiness, auth
// throttling and idempotent replays.
type Store interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	IdempotencyKey(scope, id string) string
	RateLimitKey(scope string) string
}

// Dependencies collects everything NewRouter mounts.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          Store
	Sessions       session.AccessSessionChecker
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Auth          auth.Service
	Register      auth.RegisterService
	Users         users.Service
	UserFinder    controllers.UserFinder
	Ladder        leveling.LadderService
	Orders        orders.Service
	Achievements  achievements.Service
	Notifications notifications.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authenticate := middleware.Auth(cfg.JWT, deps.Sessions, logg)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Register, logg))
		r.With(authenticate).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/me", controllers.Me(deps.Users, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/stats", ordercontrollers.Stats(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
			r.Delete("/{orderId}", ordercontrollers.Delete(deps.Orders, logg))
		})

		r.Route("/levels", func(r chi.Router) {
			r.Get("/", controllers.ListLevels(deps.Ladder, logg))
			r.Get("/current", controllers.CurrentLevel(deps.Ladder, deps.UserFinder, logg))
			r.Get("/next", controllers.NextLevel(deps.Ladder, deps.UserFinder, logg))
			r.Get("/{levelId}", controllers.GetLevel(deps.Ladder, logg))
		})

		r.Route("/achievements", func(r chi.Router) {
			r.Get("/", controllers.ListAchievements(deps.Achievements, logg))
			r.Get("/catalog", controllers.AchievementCatalog(deps.Achievements, logg))
			r.Post("/check", controllers.CheckAchievements(deps.Achievements, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(deps.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatus(deps.Orders, logg))
			r.Patch("/{orderId}/driver", controllers.AdminAssignDriver(deps.Orders, logg))
		})
		r.Route("/achievements", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateAchievement(deps.Achievements, logg))
			r.Put("/{achievementId}", controllers.AdminUpdateAchievement(deps.Achievements, logg))
		})
	})

	return r
}
