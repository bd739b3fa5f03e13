package config

const EnvPrefix = "CARTSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "CARTSYNC_APP_ENV"
	EnvPort      = "CARTSYNC_APP_PORT"
	EnvDBDSN     = "CARTSYNC_DB_DSN"
	EnvDBHost    = "CARTSYNC_DB_HOST"
	EnvDBUser    = "CARTSYNC_DB_USER"
	EnvDBName    = "CARTSYNC_DB_NAME"
	EnvDBPass    = "CARTSYNC_DB_PASSWORD"
	EnvRedisURL  = "CARTSYNC_REDIS_URL"
	EnvJWTSecret = "CARTSYNC_JWT_SECRET"
	EnvJWTIssuer = "CARTSYNC_JWT_ISSUER"

	EnvCartCacheTTL = "CARTSYNC_CART_CACHE_TTL"
	EnvMergeLockTTL = "CARTSYNC_MERGE_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
