package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "REBOOK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Payments     PaymentsConfig
	Courier      CourierConfig
	Mailer       MailerConfig
	Secrets      SecretsConfig
	Orders       OrdersConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"REBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"REBOOK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"REBOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REBOOK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"REBOOK_DB_DSN"`
	Driver string `envconfig:"REBOOK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"REBOOK_DB_HOST"`
	Port     int    `envconfig:"REBOOK_DB_PORT" default:"5432"`
	User     string `envconfig:"REBOOK_DB_USER"`
	Password string `envconfig:"REBOOK_DB_PASSWORD"`
	Name     string `envconfig:"REBOOK_DB_NAME"`
	SSLMode  string `envconfig:"REBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REBOOK_REDIS_URL" required:"true"`
	Password     string        `envconfig:"REBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"REBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"REBOOK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"REBOOK_JWT_ISSUER" default:"rebook"`
	ExpirationMinutes int    `envconfig:"REBOOK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PaymentsConfig selects the active gateway and carries its credentials.
type PaymentsConfig struct {
	Gateway           string `envconfig:"REBOOK_PAYMENT_GATEWAY" default:"paystack"`
	PaystackSecretKey string `envconfig:"REBOOK_PAYSTACK_SECRET_KEY"`
	PaystackBaseURL   string `envconfig:"REBOOK_PAYSTACK_BASE_URL"`
	BobPayAPIKey      string `envconfig:"REBOOK_BOBPAY_API_KEY"`
	BobPayBaseURL     string `envconfig:"REBOOK_BOBPAY_BASE_URL"`
	CallbackBaseURL   string `envconfig:"REBOOK_PAYMENT_CALLBACK_BASE_URL" required:"true"`
	PlatformFeeCents  int    `envconfig:"REBOOK_PLATFORM_FEE_CENTS" default:"1000"`
	// SellerShare is the fraction of the order amount credited to the
	// seller's wallet on collection; the remainder is platform commission.
	SellerShare float64 `envconfig:"REBOOK_SELLER_SHARE" default:"0.9"`
}

type CourierConfig struct {
	APIKey        string        `envconfig:"REBOOK_BOBGO_API_KEY"`
	BaseURL       string        `envconfig:"REBOOK_BOBGO_BASE_URL"`
	WebhookSecret string        `envconfig:"REBOOK_BOBGO_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"REBOOK_BOBGO_TIMEOUT" default:"15s"`
}

type MailerConfig struct {
	APIKey      string `envconfig:"REBOOK_MAILER_API_KEY"`
	BaseURL     string `envconfig:"REBOOK_MAILER_BASE_URL"`
	DefaultFrom string `envconfig:"REBOOK_MAILER_FROM_EMAIL" default:"orders@rebook.co.za"`
}

// SecretsConfig holds the keyset used to seal address and banking blobs.
// Keys are base64-encoded 32-byte values; Version points at the key new
// writes use while older versions stay decryptable.
type SecretsConfig struct {
	AddressKeys    map[string]string `envconfig:"REBOOK_ADDRESS_KEYS" required:"true"`
	AddressVersion string            `envconfig:"REBOOK_ADDRESS_KEY_VERSION" default:"v1"`
}

type OrdersConfig struct {
	CommitDeadline     time.Duration `envconfig:"REBOOK_COMMIT_DEADLINE" default:"48h"`
	ExpirySweepEvery   time.Duration `envconfig:"REBOOK_COMMIT_EXPIRY_SWEEP_EVERY" default:"10m"`
	ExpirySweepEnabled bool          `envconfig:"REBOOK_COMMIT_EXPIRY_SWEEP_ENABLED" default:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"REBOOK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"REBOOK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for _, pair := range []struct{ env, val string }{
		{"REBOOK_DB_HOST", db.Host},
		{"REBOOK_DB_USER", db.User},
		{"REBOOK_DB_NAME", db.Name},
	} {
		if pair.val == "" {
			missing = append(missing, pair.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either REBOOK_DB_DSN or %s are required", strings.Join(missing, ", "))
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
