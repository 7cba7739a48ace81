package config

const EnvPrefix = "BACKOFFICE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv           = "BACKOFFICE_APP_ENV"
	EnvPort             = "BACKOFFICE_APP_PORT"
	EnvDBDSN            = "BACKOFFICE_DB_DSN"
	EnvDBHost           = "BACKOFFICE_DB_HOST"
	EnvDBUser           = "BACKOFFICE_DB_USER"
	EnvDBPassword       = "BACKOFFICE_DB_PASSWORD"
	EnvDBName           = "BACKOFFICE_DB_NAME"
	EnvDBQueryTimeout   = "BACKOFFICE_DB_QUERY_TIMEOUT"
	EnvRedisURL         = "BACKOFFICE_REDIS_URL"
	EnvJWTSecret        = "BACKOFFICE_JWT_SECRET"
	EnvJWTIssuer        = "BACKOFFICE_JWT_ISSUER"
	EnvGCPProjectID     = "BACKOFFICE_GCP_PROJECT_ID"
	EnvOrderExpiration  = "BACKOFFICE_ORDER_EXPIRATION_WINDOW"
	EnvIncomeSweepDays  = "BACKOFFICE_INCOME_SWEEP_MAX_DAYS"
	EnvPubSubOrderTopic = "BACKOFFICE_PUBSUB_ORDERS_TOPIC"
	EnvCORSOrigins      = "BACKOFFICE_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
