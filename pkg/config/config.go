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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cart         CartConfig
	Merge        MergeConfig
	Cron         CronConfig
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
	Env          string `envconfig:"CARTSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"CARTSYNC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CARTSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARTSYNC_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"CARTSYNC_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type DBConfig struct {
	DSN string `envconfig:"CARTSYNC_DB_DSN"`

	LegacyHost     string `envconfig:"CARTSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"CARTSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARTSYNC_DB_USER"`
	LegacyPassword string `envconfig:"CARTSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARTSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARTSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARTSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTSYNC_REDIS_URL"`
	Address      string        `envconfig:"CARTSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CARTSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"CARTSYNC_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CARTSYNC_JWT_ISSUER" required:"true"`
}

type CartConfig struct {
	LowStockThreshold int           `envconfig:"CARTSYNC_CART_LOW_STOCK_THRESHOLD" default:"5"`
	CacheTTL          time.Duration `envconfig:"CARTSYNC_CART_CACHE_TTL" default:"30s"`
	IdempotencyTTL    time.Duration `envconfig:"CARTSYNC_CART_IDEMPOTENCY_TTL" default:"24h"`
}

type MergeConfig struct {
	LockTTL    time.Duration `envconfig:"CARTSYNC_MERGE_LOCK_TTL" default:"30s"`
	StaleAfter time.Duration `envconfig:"CARTSYNC_MERGE_STALE_AFTER" default:"15m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CARTSYNC_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"CARTSYNC_CRON_LOCK_TTL" default:"4m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARTSYNC_AUTO_MIGRATE" default:"false"`
	CartCache   bool `envconfig:"CARTSYNC_FEATURE_CART_CACHE" default:"true"`
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
