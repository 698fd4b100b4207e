package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Email         EmailConfig
	Rewards       RewardsConfig
	Dispatch      DispatchConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Email.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PORTER_APP_ENV" required:"true"`
	Port         string `envconfig:"PORTER_APP_PORT" required:"true"`
	Name         string `envconfig:"PORTER_APP_NAME" default:"porter"`
	LogLevel     string `envconfig:"PORTER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PORTER_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"PORTER_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PORTER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"PORTER_DB_DSN"`

	Host     string `envconfig:"PORTER_DB_HOST"`
	Port     int    `envconfig:"PORTER_DB_PORT" default:"5432"`
	User     string `envconfig:"PORTER_DB_USER"`
	Password string `envconfig:"PORTER_DB_PASSWORD"`
	Name     string `envconfig:"PORTER_DB_NAME"`
	SSLMode  string `envconfig:"PORTER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PORTER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PORTER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PORTER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PORTER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PORTER_REDIS_URL"`
	Address      string        `envconfig:"PORTER_REDIS_ADDR"`
	Password     string        `envconfig:"PORTER_REDIS_PASSWORD"`
	DB           int           `envconfig:"PORTER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PORTER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PORTER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PORTER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PORTER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PORTER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PORTER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PORTER_JWT_ISSUER" default:"porter"`
	ExpirationMinutes int    `envconfig:"PORTER_JWT_EXPIRATION_MINUTES" default:"60"`
	SessionTTLMinutes int    `envconfig:"PORTER_SESSION_TTL_MINUTES" default:"1440"`
}

// SessionTTL is how long a login session stays valid in Redis.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PORTER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PORTER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PORTER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PORTER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PORTER_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PORTER_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PORTER_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PORTER_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PORTER_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PORTER_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PORTER_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PORTER_AUTO_MIGRATE" default:"false"`
	// AllowAdminSignup lets /auth/register create admin accounts. Dev only.
	AllowAdminSignup bool `envconfig:"PORTER_ALLOW_ADMIN_SIGNUP" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PORTER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PORTER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PORTER_PUBSUB_DOMAIN_TOPIC" default:"porter-domain-events"`
	DomainSubscription string `envconfig:"PORTER_PUBSUB_DOMAIN_SUBSCRIPTION" default:"porter-domain-events-achievements"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PORTER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PORTER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PORTER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EmailConfig struct {
	Provider  string `envconfig:"PORTER_EMAIL_PROVIDER" default:"log"`
	From      string `envconfig:"PORTER_EMAIL_FROM" default:"noreply@porter-logistics.com"`
	SESRegion string `envconfig:"PORTER_EMAIL_SES_REGION"`
}

func (e EmailConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Provider)) {
	case EmailProviderLog:
		return nil
	case EmailProviderSES:
		if strings.TrimSpace(e.SESRegion) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvEmailSESRegion, EnvEmailProvider, EmailProviderSES)
		}
		return nil
	default:
		return fmt.Errorf("unsupported email provider %q", e.Provider)
	}
}

type RewardsConfig struct {
	DeliveryXP     int64         `envconfig:"PORTER_REWARDS_DELIVERY_XP" default:"50"`
	LadderCacheTTL time.Duration `envconfig:"PORTER_REWARDS_LADDER_CACHE_TTL" default:"30m"`
	CatalogTTL     time.Duration `envconfig:"PORTER_REWARDS_CATALOG_CACHE_TTL" default:"10m"`
}

type DispatchConfig struct {
	TaskTimeout     time.Duration `envconfig:"PORTER_DISPATCH_TASK_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"PORTER_DISPATCH_SHUTDOWN_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"PORTER_CRON_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"PORTER_CRON_LOCK_TTL" default:"10m"`
	SweepLookback         time.Duration `envconfig:"PORTER_CRON_ACHIEVEMENT_LOOKBACK" default:"24h"`
	NotificationRetention time.Duration `envconfig:"PORTER_CRON_NOTIFICATION_RETENTION" default:"2160h"`
	OutboxRetention       time.Duration `envconfig:"PORTER_CRON_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
