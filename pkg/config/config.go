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
	Billing      BillingConfig
	Topup        TopupConfig
	Provider     ProviderConfig
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
	Env          string `envconfig:"UNIPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"UNIPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"UNIPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"UNIPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"UNIPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"UNIPAY_DB_DSN"`
	Driver string `envconfig:"UNIPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"UNIPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"UNIPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"UNIPAY_DB_USER"`
	LegacyPassword string `envconfig:"UNIPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"UNIPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"UNIPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"UNIPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"UNIPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"UNIPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"UNIPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"UNIPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"UNIPAY_REDIS_ADDR"`
	Password     string        `envconfig:"UNIPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"UNIPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"UNIPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"UNIPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"UNIPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"UNIPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"UNIPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BillingConfig tunes the recurring-billing sweep. HorizonDays is how far
// ahead the scheduler materializes upcoming subscription payments.
type BillingConfig struct {
	HorizonDays   int           `envconfig:"UNIPAY_BILLING_HORIZON_DAYS" default:"31"`
	SweepInterval time.Duration `envconfig:"UNIPAY_BILLING_SWEEP_INTERVAL" default:"24h"`
}

// Horizon returns the forward scheduling window as a duration.
func (b BillingConfig) Horizon() time.Duration {
	days := b.HorizonDays
	if days <= 0 {
		days = 31
	}
	return time.Duration(days) * 24 * time.Hour
}

type TopupConfig struct {
	MinAmount string `envconfig:"UNIPAY_TOPUP_MIN_AMOUNT" default:"5"`
	MaxAmount string `envconfig:"UNIPAY_TOPUP_MAX_AMOUNT" default:"10000"`
}

// ProviderConfig holds the boundary credentials for the external payment
// provider. The provider protocol itself lives outside this service; only
// webhook verification material is needed here.
type ProviderConfig struct {
	WebhookSecret string `envconfig:"UNIPAY_PROVIDER_WEBHOOK_SECRET"`
	Env           string `envconfig:"UNIPAY_PROVIDER_ENV" default:"test"`
}

// Environment returns the normalized provider environment (test/live).
func (p ProviderConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"UNIPAY_AUTO_MIGRATE" default:"false"`
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
