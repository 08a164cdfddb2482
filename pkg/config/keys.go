package config

// EnvPrefix namespaces every FreshPress environment variable.
const EnvPrefix = "FRESHPRESS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "FRESHPRESS_APP_ENV"
	EnvPort     = "FRESHPRESS_APP_PORT"
	EnvDBDSN    = "FRESHPRESS_DB_DSN"
	EnvDBHost   = "FRESHPRESS_DB_HOST"
	EnvDBUser   = "FRESHPRESS_DB_USER"
	EnvDBName   = "FRESHPRESS_DB_NAME"
	EnvRedisURL = "FRESHPRESS_REDIS_URL"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
