package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"career-assessment"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	WordPress WordPress
	Redis     Redis
	Security  Security
	Sessions  Sessions
	Results   Results
	CORS      CORS
}

// WordPress describes the REST backend that issues tokens and scores tests.
type WordPress struct {
	BaseURL        string        `env:"WP_BASE_URL,notEmpty"`
	APINamespace   string        `env:"WP_API_NAMESPACE" envDefault:"career/v1"`
	AuthNamespace  string        `env:"WP_AUTH_NAMESPACE" envDefault:"jwt-auth/v1"`
	RequestTimeout time.Duration `env:"WP_REQUEST_TIMEOUT" envDefault:"10s"`
	LoginURL       string        `env:"WP_LOGIN_URL" envDefault:"/login"`
}

// Redis holds the token and result cache connection.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security controls how long backend token validations are trusted.
type Security struct {
	TokenValidationTTL time.Duration `env:"TOKEN_VALIDATION_TTL" envDefault:"5m"`
}

// Sessions governs in-memory quiz session retention.
type Sessions struct {
	IdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
}

// Results configures the latest-result cache.
type Results struct {
	CacheTTL time.Duration `env:"RESULT_CACHE_TTL" envDefault:"720h"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Sessions.SweepInterval <= 0 {
		return nil, fmt.Errorf("parse config: SESSION_SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}
