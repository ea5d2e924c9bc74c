package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the kioskcm service.
type Config struct {
	Addr               string        `env:"ADDR,default=:8080"`
	DBDSN              string        `env:"DB_DSN,required"`
	DBAutoMigrate      bool          `env:"DB_AUTO_MIGRATE,default=true"`
	NATSURL            string        `env:"NATS_URL"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel           string        `env:"LOG_LEVEL,default=info"`
	LogFormat          string        `env:"LOG_FORMAT,default=console"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE,default=600"`
	LockTTL            time.Duration `env:"LOCK_TTL,default=5m"`
	LockSweepInterval  time.Duration `env:"LOCK_SWEEP_INTERVAL,default=1m"`

	KeycloakURL          string        `env:"KEYCLOAK_URL,required"`
	KeycloakRealm        string        `env:"KEYCLOAK_REALM,required"`
	KeycloakClientID     string        `env:"KEYCLOAK_CLIENT_ID,required"`
	KeycloakClientSecret string        `env:"KEYCLOAK_CLIENT_SECRET,required"`
	DisplayNameCacheTTL  time.Duration `env:"DISPLAY_NAME_CACHE_TTL,default=10m"`
	DisplayNameCacheSize int           `env:"DISPLAY_NAME_CACHE_SIZE,default=1024"`

	S3Bucket           string `env:"S3_BUCKET"`
	S3Endpoint         string `env:"S3_ENDPOINT"`
	S3Region           string `env:"S3_REGION,default=us-east-1"`
	S3AccessKey        string `env:"S3_ACCESS_KEY"`
	S3SecretKey        string `env:"S3_SECRET_KEY"`
	S3DisableTLS       bool   `env:"S3_DISABLE_TLS,default=false"`
	S3ForcePathStyle   bool   `env:"S3_FORCE_PATH_STYLE,default=true"`
	MediaPublicBaseURL string `env:"MEDIA_PUBLIC_BASE_URL"`
}

// Load reads an optional .env file, then populates and validates a Config
// from environment variables.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_TTL must be positive, got %s", c.LockTTL))
	}
	if c.LockSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_SWEEP_INTERVAL must be positive, got %s", c.LockSweepInterval))
	}
	if c.DisplayNameCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("DISPLAY_NAME_CACHE_TTL must be positive, got %s", c.DisplayNameCacheTTL))
	}
	if c.DisplayNameCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("DISPLAY_NAME_CACHE_SIZE must be positive, got %d", c.DisplayNameCacheSize))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}
	if c.MediaEnabled() && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set"))
	}
	return errors.Join(errs...)
}

// MediaEnabled reports whether media uploads are configured.
func (c Config) MediaEnabled() bool {
	return strings.TrimSpace(c.S3Bucket) != ""
}

// Level returns the configured log level. Validate has already accepted it.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
