package config

const (
	EnvPrefix = "AGROMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "AGROMART_APP_ENV"
	EnvPort           = "AGROMART_APP_PORT"
	EnvDBDSN          = "AGROMART_DB_DSN"
	EnvDBHost         = "AGROMART_DB_HOST"
	EnvDBUser         = "AGROMART_DB_USER"
	EnvDBName         = "AGROMART_DB_NAME"
	EnvRedisURL       = "AGROMART_REDIS_URL"
	EnvJWTSecret      = "AGROMART_JWT_SECRET"
	EnvJWTIssuer      = "AGROMART_JWT_ISSUER"
	EnvNegotiationTTL = "AGROMART_NEGOTIATION_TTL"
	EnvSquareToken    = "AGROMART_SQUARE_ACCESS_TOKEN"
	EnvSquareLocation = "AGROMART_SQUARE_LOCATION_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
