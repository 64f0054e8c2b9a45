package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	DB            DBConfig
	Redis         RedisConfig
	Mongo         MongoConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Cart          CartConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Media         MediaConfig
	PubSub        PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(cfg.Mongo); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GULAUTOS_APP_ENV" required:"true"`
	Port         string `envconfig:"GULAUTOS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GULAUTOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GULAUTOS_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"GULAUTOS_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"GULAUTOS_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"GULAUTOS_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"GULAUTOS_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"GULAUTOS_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"GULAUTOS_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	CookieSecure    bool          `envconfig:"GULAUTOS_COOKIE_SECURE" default:"true"`
	CookieDomain    string        `envconfig:"GULAUTOS_COOKIE_DOMAIN"`
}

type DBConfig struct {
	DSN string `envconfig:"GULAUTOS_DB_DSN"`

	Host     string `envconfig:"GULAUTOS_DB_HOST"`
	Port     int    `envconfig:"GULAUTOS_DB_PORT" default:"5432"`
	User     string `envconfig:"GULAUTOS_DB_USER"`
	Password string `envconfig:"GULAUTOS_DB_PASSWORD"`
	Name     string `envconfig:"GULAUTOS_DB_NAME"`
	SSLMode  string `envconfig:"GULAUTOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GULAUTOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GULAUTOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GULAUTOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GULAUTOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GULAUTOS_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GULAUTOS_REDIS_URL"`
	Address      string        `envconfig:"GULAUTOS_REDIS_ADDR"`
	Password     string        `envconfig:"GULAUTOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"GULAUTOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GULAUTOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GULAUTOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GULAUTOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GULAUTOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GULAUTOS_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"GULAUTOS_REDIS_KEY_PREFIX" default:"gul"`
}

type MongoConfig struct {
	URI            string        `envconfig:"GULAUTOS_MONGO_URI"`
	Database       string        `envconfig:"GULAUTOS_MONGO_DATABASE" default:"gulautos"`
	ConnectTimeout time.Duration `envconfig:"GULAUTOS_MONGO_CONNECT_TIMEOUT" default:"10s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"GULAUTOS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"GULAUTOS_JWT_ISSUER" default:"gulautos"`
	ExpirationMinutes      int    `envconfig:"GULAUTOS_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"GULAUTOS_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GULAUTOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GULAUTOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GULAUTOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GULAUTOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GULAUTOS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"GULAUTOS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"GULAUTOS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"GULAUTOS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"GULAUTOS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"GULAUTOS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"GULAUTOS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// CartConfig selects the durable cart backend.
type CartConfig struct {
	Store string        `envconfig:"GULAUTOS_CART_STORE" default:"redis"`
	TTL   time.Duration `envconfig:"GULAUTOS_CART_TTL" default:"720h"`
}

func (c CartConfig) validate(mongo MongoConfig) error {
	switch strings.ToLower(strings.TrimSpace(c.Store)) {
	case CartStoreRedis:
		return nil
	case CartStoreMongo:
		if strings.TrimSpace(mongo.URI) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvMongoURI, EnvCartStore, CartStoreMongo)
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvCartStore, c.Store)
	}
}

// Backend returns the normalized cart store name.
func (c CartConfig) Backend() string {
	return strings.ToLower(strings.TrimSpace(c.Store))
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GULAUTOS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GULAUTOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GULAUTOS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"GULAUTOS_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"GULAUTOS_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	Endpoint      string `envconfig:"GULAUTOS_GCS_ENDPOINT" default:"https://storage.googleapis.com"`
}

type MediaConfig struct {
	MaxUploadMB    int `envconfig:"GULAUTOS_MAX_UPLOAD_MB" default:"10"`
	MaxFilesPerReq int `envconfig:"GULAUTOS_MEDIA_MAX_FILES" default:"10"`
}

// MaxUploadBytes returns the per-file upload limit in bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(m.MaxUploadMB) << 20
}

type PubSubConfig struct {
	MediaDeletionTopic        string `envconfig:"GULAUTOS_PUBSUB_MEDIA_DELETION_TOPIC"`
	MediaDeletionSubscription string `envconfig:"GULAUTOS_PUBSUB_MEDIA_DELETION_SUBSCRIPTION"`
	MaxOutstandingMessages    int    `envconfig:"GULAUTOS_PUBSUB_MAX_OUTSTANDING" default:"10"`
}

// Enabled reports whether media deletions are published asynchronously.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.MediaDeletionTopic) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
