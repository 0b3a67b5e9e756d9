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
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Negotiation  NegotiationConfig
	Delivery     DeliveryConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Square       SquareConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Negotiation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGROMART_APP_ENV" required:"true"`
	Port         string `envconfig:"AGROMART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"AGROMART_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"AGROMART_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"AGROMART_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"AGROMART_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"AGROMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AGROMART_DB_DSN"`
	Driver string `envconfig:"AGROMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGROMART_DB_HOST"`
	LegacyPort     int    `envconfig:"AGROMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGROMART_DB_USER"`
	LegacyPassword string `envconfig:"AGROMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGROMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGROMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGROMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGROMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGROMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGROMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"AGROMART_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGROMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AGROMART_REDIS_ADDR"`
	Password     string        `envconfig:"AGROMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGROMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGROMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGROMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGROMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGROMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGROMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGROMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGROMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGROMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type RateLimitConfig struct {
	MutationWindow time.Duration `envconfig:"AGROMART_RATE_LIMIT_MUTATION_WINDOW" default:"1m"`
	MutationLimit  int           `envconfig:"AGROMART_RATE_LIMIT_MUTATION_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AGROMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AGROMART_AUTO_MIGRATE" default:"false"`
}

// NegotiationConfig holds the lifecycle windows of a negotiation.
type NegotiationConfig struct {
	TTL                 time.Duration `envconfig:"AGROMART_NEGOTIATION_TTL" default:"168h"`
	NearExpiryWindow    time.Duration `envconfig:"AGROMART_NEGOTIATION_NEAR_EXPIRY_WINDOW" default:"24h"`
	ExpiryWarningWindow time.Duration `envconfig:"AGROMART_NEGOTIATION_EXPIRY_WARNING_WINDOW" default:"24h"`
	MaxMessageLength    int           `envconfig:"AGROMART_NEGOTIATION_MAX_MESSAGE_LENGTH" default:"500"`
}

func (n NegotiationConfig) validate() error {
	if n.TTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvNegotiationTTL)
	}
	if n.NearExpiryWindow < 0 || n.ExpiryWarningWindow < 0 {
		return fmt.Errorf("negotiation expiry windows must not be negative")
	}
	return nil
}

// DeliveryConfig carries the delivery fee rates used for negotiated checkouts.
type DeliveryConfig struct {
	RatePerKg        string `envconfig:"AGROMART_DELIVERY_RATE_PER_KG" default:"7"`
	PieceFlatFee     string `envconfig:"AGROMART_DELIVERY_PIECE_FLAT_FEE" default:"70"`
	StandardMinFee   string `envconfig:"AGROMART_DELIVERY_STANDARD_MIN_FEE" default:"50"`
	SemiTruckBaseFee string `envconfig:"AGROMART_DELIVERY_SEMI_TRUCK_BASE_FEE" default:"200"`
	TruckBaseFee     string `envconfig:"AGROMART_DELIVERY_TRUCK_BASE_FEE" default:"500"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL   time.Duration `envconfig:"AGROMART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL     time.Duration `envconfig:"AGROMART_HTTP_IDEMPOTENCY_TTL" default:"24h"`
	CheckoutIdempotencyTTL time.Duration `envconfig:"AGROMART_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
	// IdempotencyLease bounds how long an unfinished claim blocks retries.
	IdempotencyLease time.Duration `envconfig:"AGROMART_IDEMPOTENCY_LEASE" default:"2m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AGROMART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AGROMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AGROMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NegotiationTopic         string `envconfig:"AGROMART_PUBSUB_NEGOTIATION_TOPIC" default:"agromart-negotiation-events"`
	NotificationSubscription string `envconfig:"AGROMART_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"agromart-negotiation-notifications"`
	AnalyticsSubscription    string `envconfig:"AGROMART_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"agromart-negotiation-analytics"`
	DeadLetterTopic          string `envconfig:"AGROMART_PUBSUB_DEAD_LETTER_TOPIC"`
}

type BigQueryConfig struct {
	Dataset                string        `envconfig:"AGROMART_BIGQUERY_DATASET" default:"agromart"`
	NegotiationEventsTable string        `envconfig:"AGROMART_BIGQUERY_NEGOTIATION_TABLE" default:"negotiation_events"`
	BatchSize              int           `envconfig:"AGROMART_BIGQUERY_BATCH_SIZE" default:"1"`
	FlushInterval          time.Duration `envconfig:"AGROMART_BIGQUERY_FLUSH_INTERVAL" default:"5s"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"AGROMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"AGROMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"AGROMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"AGROMART_OUTBOX_METRICS_ADDR"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"AGROMART_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"AGROMART_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"AGROMART_SQUARE_LOCATION_ID"`
	Currency    string `envconfig:"AGROMART_SQUARE_CURRENCY" default:"USD"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// Enabled reports whether online payments can be processed.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != "" && strings.TrimSpace(s.LocationID) != ""
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"AGROMART_CRON_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"AGROMART_CRON_LOCK_TTL" default:"10m"`
	NotificationRetention time.Duration `envconfig:"AGROMART_CRON_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"AGROMART_CRON_OUTBOX_RETENTION" default:"168h"`
	SweepBatchSize        int           `envconfig:"AGROMART_CRON_SWEEP_BATCH_SIZE" default:"500"`
	JobTimeout            time.Duration `envconfig:"AGROMART_CRON_JOB_TIMEOUT" default:"5m"`
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
