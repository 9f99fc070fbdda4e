package config

// EnvPrefix namespaces every environment variable this service reads.
const EnvPrefix = "UNIPAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Database drivers accepted by UNIPAY_DB_DRIVER.
const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "UNIPAY_APP_ENV"
	EnvPort     = "UNIPAY_APP_PORT"
	EnvDBDSN    = "UNIPAY_DB_DSN"
	EnvDBHost   = "UNIPAY_DB_HOST"
	EnvDBUser   = "UNIPAY_DB_USER"
	EnvDBName   = "UNIPAY_DB_NAME"
	EnvRedisURL = "UNIPAY_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
