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
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Pricing       PricingConfig
	Cart          CartConfig
	Payment       PaymentConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Seed          SeedConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payment.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGROMART_APP_ENV" required:"true"`
	Port         string `envconfig:"AGROMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGROMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGROMART_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"AGROMART_CORS_ORIGINS" default:"http://localhost:3000"`

	// Responses to order placement, cancellation and payment are replayed
	// for IdempotencyTTL. The key stays reserved for at most IdempotencyLockTTL
	// while the first request runs.
	IdempotencyTTL     time.Duration `envconfig:"AGROMART_HTTP_IDEMPOTENCY_TTL" default:"168h"`
	IdempotencyLockTTL time.Duration `envconfig:"AGROMART_HTTP_IDEMPOTENCY_LOCK_TTL" default:"1m"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AGROMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AGROMART_DB_DSN"`
	Driver string `envconfig:"AGROMART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AGROMART_DB_HOST"`
	Port     int    `envconfig:"AGROMART_DB_PORT" default:"5432"`
	User     string `envconfig:"AGROMART_DB_USER"`
	Password string `envconfig:"AGROMART_DB_PASSWORD"`
	Name     string `envconfig:"AGROMART_DB_NAME"`
	SSLMode  string `envconfig:"AGROMART_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"AGROMART_SQLITE_PATH" default:"agromart.db"`

	MaxOpenConns    int           `envconfig:"AGROMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGROMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGROMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGROMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"AGROMART_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
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
	Secret                 string `envconfig:"AGROMART_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"AGROMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"AGROMART_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"AGROMART_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AGROMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AGROMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AGROMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AGROMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AGROMART_ARGON_KEY_LEN" default:"32"`
}

// RateLimitConfig holds the fixed-window throttles for auth and coupon
// validation. A zero window disables the throttle.
type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"AGROMART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"AGROMART_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"AGROMART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"AGROMART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"AGROMART_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"AGROMART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	CouponWindow       time.Duration `envconfig:"AGROMART_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponUserLimit    int           `envconfig:"AGROMART_RATE_LIMIT_COUPON_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AGROMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AGROMART_AUTO_MIGRATE" default:"false"`
}

// PricingConfig holds the shipping and tax constants applied at checkout.
type PricingConfig struct {
	FreeShippingThreshold int64   `envconfig:"AGROMART_PRICING_FREE_SHIPPING_THRESHOLD" default:"5000"`
	FlatShippingFee       int64   `envconfig:"AGROMART_PRICING_FLAT_SHIPPING_FEE" default:"200"`
	TaxRate               float64 `envconfig:"AGROMART_PRICING_TAX_RATE" default:"0.18"`
}

type CartConfig struct {
	SyncPerItemCap int `envconfig:"AGROMART_CART_SYNC_PER_ITEM_CAP" default:"50"`
}

type PaymentConfig struct {
	SuccessRate float64 `envconfig:"AGROMART_PAYMENT_SUCCESS_RATE" default:"0.9"`
}

func (p PaymentConfig) validate() error {
	if p.SuccessRate < 0 || p.SuccessRate > 1 {
		return fmt.Errorf("%s must be between 0 and 1", EnvPaymentSuccessRate)
	}
	return nil
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"AGROMART_EVENTING_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"AGROMART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic          string `envconfig:"AGROMART_PUBSUB_ORDERS_TOPIC" default:"agromart-order-events"`
	PaymentsTopic        string `envconfig:"AGROMART_PUBSUB_PAYMENTS_TOPIC" default:"agromart-payment-events"`
	OrdersSubscription   string `envconfig:"AGROMART_PUBSUB_ORDERS_SUBSCRIPTION"`
	PaymentsSubscription string `envconfig:"AGROMART_PUBSUB_PAYMENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AGROMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AGROMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AGROMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives the scheduled maintenance jobs.
type CronConfig struct {
	Interval              time.Duration `envconfig:"AGROMART_CRON_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"AGROMART_CRON_LOCK_TTL" default:"55m"`
	JobTimeout            time.Duration `envconfig:"AGROMART_CRON_JOB_TIMEOUT" default:"10m"`
	PendingOrderTTL       time.Duration `envconfig:"AGROMART_CRON_PENDING_ORDER_TTL" default:"48h"`
	NotificationRetention time.Duration `envconfig:"AGROMART_CRON_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"AGROMART_CRON_OUTBOX_RETENTION" default:"720h"`
}

type SeedConfig struct {
	CatalogFile string `envconfig:"AGROMART_SEED_CATALOG_FILE" default:"seed/catalog.yaml"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.Driver == DriverSQLite {
		return nil
	}

	missing := []string{}
	partValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if partValues[env] == "" {
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
