package config

// EnvPrefix is handed to envconfig; every field carries an explicit key.
const EnvPrefix = "GULAUTOS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	CartStoreRedis = "redis"
	CartStoreMongo = "mongo"
)

const (
	EnvAppEnv      = "GULAUTOS_APP_ENV"
	EnvPort        = "GULAUTOS_APP_PORT"
	EnvDBDSN       = "GULAUTOS_DB_DSN"
	EnvDBHost      = "GULAUTOS_DB_HOST"
	EnvDBUser      = "GULAUTOS_DB_USER"
	EnvDBName      = "GULAUTOS_DB_NAME"
	EnvRedisURL    = "GULAUTOS_REDIS_URL"
	EnvMongoURI    = "GULAUTOS_MONGO_URI"
	EnvJWTSecret   = "GULAUTOS_JWT_SECRET"
	EnvJWTIssuer   = "GULAUTOS_JWT_ISSUER"
	EnvJWTExpMins  = "GULAUTOS_JWT_EXPIRATION_MINUTES"
	EnvCartStore   = "GULAUTOS_CART_STORE"
	EnvGCSBucket   = "GULAUTOS_GCS_BUCKET_NAME"
	EnvMediaTopic  = "GULAUTOS_PUBSUB_MEDIA_DELETION_TOPIC"
	EnvCORSOrigins = "GULAUTOS_CORS_ALLOWED_ORIGINS"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
