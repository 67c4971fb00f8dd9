package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "framevault"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared between Load and the test harness.
const (
	EnvAppEnv                 = "FRAMEVAULT_APP_ENV"
	EnvPort                   = "FRAMEVAULT_APP_PORT"
	EnvDBDSN                  = "FRAMEVAULT_DB_DSN"
	EnvDBHost                 = "FRAMEVAULT_DB_HOST"
	EnvDBUser                 = "FRAMEVAULT_DB_USER"
	EnvDBName                 = "FRAMEVAULT_DB_NAME"
	EnvRedisURL               = "FRAMEVAULT_REDIS_URL"
	EnvJWTSecret              = "FRAMEVAULT_JWT_SECRET"
	EnvJWTIssuer              = "FRAMEVAULT_JWT_ISSUER"
	EnvJWTExpMins             = "FRAMEVAULT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FRAMEVAULT_REFRESH_TOKEN_TTL_MINUTES"
	EnvS3Region               = "FRAMEVAULT_S3_REGION"
	EnvS3MediaBucket          = "FRAMEVAULT_S3_MEDIA_BUCKET"
	EnvS3ThumbnailBucket      = "FRAMEVAULT_S3_THUMBNAIL_BUCKET"
	EnvS3UploadExpiry         = "FRAMEVAULT_S3_UPLOAD_URL_EXPIRY"
	EnvS3DownloadExpiry       = "FRAMEVAULT_S3_DOWNLOAD_URL_EXPIRY"
	EnvGCPProjectID           = "FRAMEVAULT_GCP_PROJECT_ID"
	EnvPubSubPurgeTopic       = "FRAMEVAULT_PUBSUB_PURGE_TOPIC"
	EnvPubSubPurgeSub         = "FRAMEVAULT_PUBSUB_PURGE_SUBSCRIPTION"
	EnvPubSubNotifTopic       = "FRAMEVAULT_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotifSub         = "FRAMEVAULT_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	S3            S3Config
	Media         MediaConfig
	Quota         QuotaConfig
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
	Env          string `envconfig:"FRAMEVAULT_APP_ENV" required:"true"`
	Port         string `envconfig:"FRAMEVAULT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FRAMEVAULT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRAMEVAULT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FRAMEVAULT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FRAMEVAULT_DB_DSN"`
	Driver string `envconfig:"FRAMEVAULT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FRAMEVAULT_DB_HOST"`
	LegacyPort     int    `envconfig:"FRAMEVAULT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FRAMEVAULT_DB_USER"`
	LegacyPassword string `envconfig:"FRAMEVAULT_DB_PASSWORD"`
	LegacyName     string `envconfig:"FRAMEVAULT_DB_NAME"`
	LegacySSLMode  string `envconfig:"FRAMEVAULT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRAMEVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRAMEVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRAMEVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRAMEVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FRAMEVAULT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FRAMEVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"FRAMEVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRAMEVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRAMEVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRAMEVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRAMEVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRAMEVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRAMEVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FRAMEVAULT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FRAMEVAULT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FRAMEVAULT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FRAMEVAULT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FRAMEVAULT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FRAMEVAULT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FRAMEVAULT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FRAMEVAULT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FRAMEVAULT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FRAMEVAULT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FRAMEVAULT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FRAMEVAULT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FRAMEVAULT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FRAMEVAULT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FRAMEVAULT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FRAMEVAULT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FRAMEVAULT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FRAMEVAULT_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	PurgeTopic               string `envconfig:"FRAMEVAULT_PUBSUB_PURGE_TOPIC" required:"true"`
	PurgeSubscription        string `envconfig:"FRAMEVAULT_PUBSUB_PURGE_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"FRAMEVAULT_PUBSUB_NOTIFICATION_TOPIC" default:"fv-notification-events"`
	NotificationSubscription string `envconfig:"FRAMEVAULT_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FRAMEVAULT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FRAMEVAULT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FRAMEVAULT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type S3Config struct {
	Region            string        `envconfig:"FRAMEVAULT_S3_REGION" required:"true"`
	MediaBucket       string        `envconfig:"FRAMEVAULT_S3_MEDIA_BUCKET" required:"true"`
	ThumbnailBucket   string        `envconfig:"FRAMEVAULT_S3_THUMBNAIL_BUCKET" required:"true"`
	AccessKeyID       string        `envconfig:"FRAMEVAULT_S3_ACCESS_KEY_ID"`
	SecretAccessKey   string        `envconfig:"FRAMEVAULT_S3_SECRET_ACCESS_KEY"`
	Endpoint          string        `envconfig:"FRAMEVAULT_S3_ENDPOINT"`
	UploadURLExpiry   time.Duration `envconfig:"FRAMEVAULT_S3_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"FRAMEVAULT_S3_DOWNLOAD_URL_EXPIRY" default:"10m"`
	ViewURLExpiry     time.Duration `envconfig:"FRAMEVAULT_S3_VIEW_URL_EXPIRY" default:"15m"`
}

type MediaConfig struct {
	MaxUploadMB   int `envconfig:"FRAMEVAULT_MAX_UPLOAD_MB" default:"200"`
	MaxBatchFiles int `envconfig:"FRAMEVAULT_MEDIA_MAX_BATCH_FILES" default:"50"`
}

type QuotaConfig struct {
	DefaultTotalBytes int64 `envconfig:"FRAMEVAULT_QUOTA_DEFAULT_TOTAL_BYTES" default:"2147483648"`
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
