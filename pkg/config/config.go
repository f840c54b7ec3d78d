package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "ATELIA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ATELIA_DB_DSN"
	EnvDBHost = "ATELIA_DB_HOST"
	EnvDBUser = "ATELIA_DB_USER"
	EnvDBName = "ATELIA_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Settlement   SettlementConfig
	Stripe       StripeConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Eventing     EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Settlement.FeeRate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ATELIA_APP_ENV" required:"true"`
	Port         string `envconfig:"ATELIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ATELIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ATELIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ATELIA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ATELIA_DB_DSN"`
	Driver string `envconfig:"ATELIA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ATELIA_DB_HOST"`
	Port     int    `envconfig:"ATELIA_DB_PORT" default:"5432"`
	User     string `envconfig:"ATELIA_DB_USER"`
	Password string `envconfig:"ATELIA_DB_PASSWORD"`
	Name     string `envconfig:"ATELIA_DB_NAME"`
	SSLMode  string `envconfig:"ATELIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ATELIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ATELIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ATELIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ATELIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ATELIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ATELIA_REDIS_ADDR"`
	Password     string        `envconfig:"ATELIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ATELIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ATELIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ATELIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ATELIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ATELIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ATELIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ATELIA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ATELIA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ATELIA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ATELIA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ATELIA_AUTO_MIGRATE" default:"false"`
}

// SettlementConfig carries the money rules the settlement core applies.
type SettlementConfig struct {
	// PlatformFeeRate is the fraction of product revenue the marketplace keeps,
	// expressed as a decimal string between 0 and 1 ("0.10" = 10%).
	PlatformFeeRate      string        `envconfig:"ATELIA_PLATFORM_FEE_RATE" default:"0.10"`
	ConfirmationWindow   time.Duration `envconfig:"ATELIA_CONFIRMATION_WINDOW" default:"24h"`
	SweepInterval        time.Duration `envconfig:"ATELIA_SETTLEMENT_SWEEP_INTERVAL" default:"15m"`
	MinimumPayoutCents   int64         `envconfig:"ATELIA_MINIMUM_PAYOUT_CENTS" default:"5000"`
	ProcessorCallTimeout time.Duration `envconfig:"ATELIA_PROCESSOR_CALL_TIMEOUT" default:"15s"`
	ReconcileAfter       time.Duration `envconfig:"ATELIA_PAYOUT_RECONCILE_AFTER" default:"5m"`
}

// FeeRate parses the configured platform fee rate and validates its range.
func (s SettlementConfig) FeeRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.PlatformFeeRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing platform fee rate %q: %w", s.PlatformFeeRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("platform fee rate %s outside [0,1]", rate)
	}
	return rate, nil
}

type StripeConfig struct {
	APIKey  string `envconfig:"ATELIA_STRIPE_API_KEY"`
	Env     string `envconfig:"ATELIA_STRIPE_ENV" default:"test"`
	Country string `envconfig:"ATELIA_STRIPE_ACCOUNT_COUNTRY" default:"US"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"ATELIA_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"ATELIA_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ATELIA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ATELIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ATELIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic          string `envconfig:"ATELIA_PUBSUB_SETTLEMENT_TOPIC" default:"atl-settlement-events"`
	NotificationTopic        string `envconfig:"ATELIA_PUBSUB_NOTIFICATION_TOPIC" default:"atl-notification-events"`
	NotificationSubscription string `envconfig:"ATELIA_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	RefundSubscription       string `envconfig:"ATELIA_PUBSUB_REFUND_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ATELIA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ATELIA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ATELIA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"ATELIA_OUTBOX_RETENTION_DAYS" default:"30"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"ATELIA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
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
	for _, env := range requiredDBEnvVars {
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
