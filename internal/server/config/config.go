// Package config loads server configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all server configuration.
type Config struct {
	HTTP      HTTPConfig
	Auth      AuthConfig
	Store     StoreConfig
	Redis     RedisConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// AuthConfig holds bearer-token verification settings. Token issuance lives
// elsewhere; this service only verifies.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
}

// StoreConfig selects and configures the account-document backend.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"memory"` // memory, s3 or postgres

	S3Endpoint  string        `envconfig:"S3_ENDPOINT" default:""`
	S3Region    string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket    string        `envconfig:"S3_BUCKET" default:"closet-sync"`
	S3AccessKey string        `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey string        `envconfig:"S3_SECRET_KEY" default:""`
	PresignTTL  time.Duration `envconfig:"S3_PRESIGN_TTL" default:"15m"`

	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
}

// RedisConfig holds rate-limiter backend settings. When disabled the server
// falls back to an in-process limiter.
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// QuotaConfig holds per-account resource caps.
type QuotaConfig struct {
	MaxImageBytes   int64 `envconfig:"QUOTA_MAX_IMAGE_BYTES" default:"10485760"`
	MaxStorageBytes int64 `envconfig:"QUOTA_MAX_STORAGE_BYTES" default:"524288000"`
	MaxItems        int   `envconfig:"QUOTA_MAX_ITEMS" default:"2000"`
	MaxTrips        int   `envconfig:"QUOTA_MAX_TRIPS" default:"200"`
	MaxOutfits      int   `envconfig:"QUOTA_MAX_OUTFITS" default:"500"`
	MaxWishlist     int   `envconfig:"QUOTA_MAX_WISHLIST" default:"500"`
	MaxNewItemsDay  int   `envconfig:"QUOTA_MAX_NEW_ITEMS_PER_DAY" default:"100"`
}

// RateLimitConfig holds per-operation request caps over a rolling window.
type RateLimitConfig struct {
	Window         time.Duration `envconfig:"RATELIMIT_WINDOW" default:"1m"`
	SyncPerWindow  int           `envconfig:"RATELIMIT_SYNC" default:"60"`
	ImagePerWindow int           `envconfig:"RATELIMIT_IMAGE" default:"30"`
}

// Address returns the server address in host:port format.
func (h *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (r *RedisConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
