package config

const (
	EnvPrefix = "WACOMMERCE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "WACOMMERCE_APP_ENV"
	EnvPort       = "WACOMMERCE_APP_PORT"
	EnvTimezone   = "WACOMMERCE_TIMEZONE"
	EnvDBDSN      = "WACOMMERCE_DB_DSN"
	EnvDBHost     = "WACOMMERCE_DB_HOST"
	EnvDBUser     = "WACOMMERCE_DB_USER"
	EnvDBName     = "WACOMMERCE_DB_NAME"
	EnvRedisURL   = "WACOMMERCE_REDIS_URL"
	EnvJWTSecret  = "WACOMMERCE_JWT_SECRET"
	EnvJWTIssuer  = "WACOMMERCE_JWT_ISSUER"
	EnvAgentURL   = "WACOMMERCE_AGENT_URL"
	EnvGatewayURL = "WACOMMERCE_GATEWAY_URL"
	EnvUseSQLite  = "WACOMMERCE_USE_SQLITE"

	defaultSQLiteDSN = "file:wacommerce.db?_foreign_keys=on&_busy_timeout=5000"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
