package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "TUTORHUB_DB_DSN"
	EnvDBHost = "TUTORHUB_DB_HOST"
	EnvDBUser = "TUTORHUB_DB_USER"
	EnvDBName = "TUTORHUB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Paystack     PaystackConfig
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
	Env          string `envconfig:"TUTORHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"TUTORHUB_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"TUTORHUB_APP_BASE_URL" required:"true"`
	LogLevel     string `envconfig:"TUTORHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TUTORHUB_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"TUTORHUB_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TUTORHUB_DB_DSN"`
	Driver string `envconfig:"TUTORHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TUTORHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"TUTORHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TUTORHUB_DB_USER"`
	LegacyPassword string `envconfig:"TUTORHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"TUTORHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"TUTORHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TUTORHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TUTORHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TUTORHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TUTORHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TUTORHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TUTORHUB_REDIS_ADDR"`
	Password     string        `envconfig:"TUTORHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"TUTORHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TUTORHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TUTORHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TUTORHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TUTORHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TUTORHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TUTORHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TUTORHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TUTORHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TUTORHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TUTORHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TUTORHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TUTORHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TUTORHUB_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TUTORHUB_AUTO_MIGRATE" default:"false"`
}

// PaystackConfig carries the processor credentials and the single
// subscription plan the platform sells.
type PaystackConfig struct {
	SecretKey          string        `envconfig:"TUTORHUB_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL            string        `envconfig:"TUTORHUB_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	SubscriptionPlan   string        `envconfig:"TUTORHUB_PAYSTACK_SUBSCRIPTION_PLAN"`
	SubscriptionAmount int64         `envconfig:"TUTORHUB_PAYSTACK_SUBSCRIPTION_AMOUNT" default:"10000"`
	RequestTimeout     time.Duration `envconfig:"TUTORHUB_PAYSTACK_TIMEOUT" default:"8s"`
	WebhookGuardTTL    time.Duration `envconfig:"TUTORHUB_PAYSTACK_WEBHOOK_GUARD_TTL" default:"72h"`
}

// KeyMode reports whether the configured secret key is a test or live key.
func (p PaystackConfig) KeyMode() string {
	switch {
	case strings.HasPrefix(p.SecretKey, "sk_test_"):
		return "test"
	case strings.HasPrefix(p.SecretKey, "sk_live_"):
		return "live"
	default:
		return "unknown"
	}
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
