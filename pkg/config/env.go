package config

const EnvPrefix = "PORTER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EmailProviderLog = "log"
	EmailProviderSES = "ses"
)

const (
	EnvAppEnv         = "PORTER_APP_ENV"
	EnvPort           = "PORTER_APP_PORT"
	EnvDBDSN          = "PORTER_DB_DSN"
	EnvDBHost         = "PORTER_DB_HOST"
	EnvDBUser         = "PORTER_DB_USER"
	EnvDBName         = "PORTER_DB_NAME"
	EnvRedisURL       = "PORTER_REDIS_URL"
	EnvJWTSecret      = "PORTER_JWT_SECRET"
	EnvJWTIssuer      = "PORTER_JWT_ISSUER"
	EnvEmailProvider  = "PORTER_EMAIL_PROVIDER"
	EnvEmailSESRegion = "PORTER_EMAIL_SES_REGION"
	EnvDeliveryXP     = "PORTER_REWARDS_DELIVERY_XP"
	EnvGCPProjectID   = "PORTER_GCP_PROJECT_ID"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
