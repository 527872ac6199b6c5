package config

const EnvPrefix = "AGROMART"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "AGROMART_APP_ENV"
	EnvPort                   = "AGROMART_APP_PORT"
	EnvDBDSN                  = "AGROMART_DB_DSN"
	EnvDBHost                 = "AGROMART_DB_HOST"
	EnvDBUser                 = "AGROMART_DB_USER"
	EnvDBName                 = "AGROMART_DB_NAME"
	EnvUseSQLite              = "AGROMART_USE_SQLITE"
	EnvRedisURL               = "AGROMART_REDIS_URL"
	EnvJWTSecret              = "AGROMART_JWT_SECRET"
	EnvJWTIssuer              = "AGROMART_JWT_ISSUER"
	EnvJWTExpMins             = "AGROMART_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "AGROMART_REFRESH_TOKEN_TTL_MINUTES"
	EnvPaymentSuccessRate     = "AGROMART_PAYMENT_SUCCESS_RATE"
	EnvPricingTaxRate         = "AGROMART_PRICING_TAX_RATE"
	EnvGCPProjectID           = "AGROMART_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "AGROMART_PUBSUB_ORDERS_TOPIC"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
