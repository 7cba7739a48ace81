package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Orders       OrdersConfig
	Income       IncomeConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"BACKOFFICE_APP_ENV" required:"true"`
	Port         string   `envconfig:"BACKOFFICE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"BACKOFFICE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"BACKOFFICE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"BACKOFFICE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BACKOFFICE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BACKOFFICE_DB_DSN"`
	Driver string `envconfig:"BACKOFFICE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BACKOFFICE_DB_HOST"`
	LegacyPort     int    `envconfig:"BACKOFFICE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BACKOFFICE_DB_USER"`
	LegacyPassword string `envconfig:"BACKOFFICE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BACKOFFICE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BACKOFFICE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BACKOFFICE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BACKOFFICE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	QueryTimeout    time.Duration `envconfig:"BACKOFFICE_DB_QUERY_TIMEOUT" default:"5s"`
	SlowQuery       time.Duration `envconfig:"BACKOFFICE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BACKOFFICE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BACKOFFICE_REDIS_ADDR"`
	Password     string        `envconfig:"BACKOFFICE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BACKOFFICE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BACKOFFICE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BACKOFFICE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BACKOFFICE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BACKOFFICE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BACKOFFICE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BACKOFFICE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BACKOFFICE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BACKOFFICE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BACKOFFICE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BACKOFFICE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BACKOFFICE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"BACKOFFICE_PUBSUB_ORDERS_TOPIC" default:"bo-order-events"`
	OrdersSubscription string `envconfig:"BACKOFFICE_PUBSUB_ORDERS_SUBSCRIPTION"`
	StockTopic         string `envconfig:"BACKOFFICE_PUBSUB_STOCK_TOPIC" default:"bo-stock-events"`
	StockSubscription  string `envconfig:"BACKOFFICE_PUBSUB_STOCK_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset      string `envconfig:"BACKOFFICE_BIGQUERY_DATASET"`
	IncomeTable  string `envconfig:"BACKOFFICE_BIGQUERY_INCOME_TABLE" default:"income_records"`
	ExportIncome bool   `envconfig:"BACKOFFICE_BIGQUERY_EXPORT_INCOME" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"BACKOFFICE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"BACKOFFICE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"BACKOFFICE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"BACKOFFICE_OUTBOX_RETENTION" default:"720h"`
}

type OrdersConfig struct {
	ExpirationWindow    time.Duration `envconfig:"BACKOFFICE_ORDER_EXPIRATION_WINDOW" default:"24h"`
	CodeAttempts        int           `envconfig:"BACKOFFICE_ORDER_CODE_ATTEMPTS" default:"10"`
	ExpirationBatchSize int           `envconfig:"BACKOFFICE_ORDER_EXPIRATION_BATCH_SIZE" default:"200"`
}

type IncomeConfig struct {
	SweepMaxDays int `envconfig:"BACKOFFICE_INCOME_SWEEP_MAX_DAYS" default:"366"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BACKOFFICE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"BACKOFFICE_CRON_LOCK_TTL" default:"55m"`
}

// RateLimitConfig throttles mutating API calls per employee. Zero disables it.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"BACKOFFICE_RATE_LIMIT_WINDOW" default:"1m"`
	Writes int           `envconfig:"BACKOFFICE_RATE_LIMIT_WRITES" default:"120"`
}

// MetricsConfig exposes /metrics on a side listener for the worker binaries.
// The api serves metrics on its own router. Empty Addr disables the listener.
type MetricsConfig struct {
	Addr string `envconfig:"BACKOFFICE_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
