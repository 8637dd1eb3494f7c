// Package config loads typed configuration from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/baxperience/baxperience/internal/database"
)

// Config is the planner configuration.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	API       APIConfig
	Geocoding GeocodingConfig
	Location  LocationConfig
	Trip      TripConfig
	Telemetry TelemetryConfig
}

// APIConfig locates the BAXperience backend.
type APIConfig struct {
	BaseURL string        `env:"BAX_API_BASE_URL" envDefault:"http://10.0.2.2:3000"`
	Prefix  string        `env:"BAX_API_PREFIX" envDefault:"/api"`
	Timeout time.Duration `env:"BAX_HTTP_TIMEOUT" envDefault:"30s"`
}

// GeocodingConfig configures reverse geocoding and its cache.
type GeocodingConfig struct {
	NominatimURL      string        `env:"BAX_NOMINATIM_URL" envDefault:"https://nominatim.openstreetmap.org"`
	UserAgent         string        `env:"BAX_USER_AGENT" envDefault:"BAXperience/1.0"`
	RequestsPerSecond float64       `env:"BAX_GEOCODE_RPS" envDefault:"1"`
	CacheTTL          time.Duration `env:"BAX_GEOCODE_CACHE_TTL" envDefault:"24h"`
	// RedisURL selects the Redis cache; empty uses the in-memory cache.
	RedisURL string `env:"BAX_REDIS_URL"`
}

// LocationConfig holds device fix options.
type LocationConfig struct {
	FixTimeout time.Duration `env:"BAX_FIX_TIMEOUT" envDefault:"15s"`
	FixMaxAge  time.Duration `env:"BAX_FIX_MAX_AGE" envDefault:"10s"`
}

// TripConfig holds request building policy.
type TripConfig struct {
	DefaultStartTime string `env:"BAX_DEFAULT_START_TIME" envDefault:"09:00"`
	MaxRequestHours  int    `env:"BAX_MAX_REQUEST_HOURS" envDefault:"12"`
	MultiDayHours    int    `env:"BAX_MULTI_DAY_HOURS" envDefault:"8"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1"`
}

// DevAPIConfig is the configuration of the local backend.
type DevAPIConfig struct {
	Environment   string        `env:"APP_ENV" envDefault:"development"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	Port          string        `env:"APP_PORT" envDefault:"3000"`
	JWTSigningKey string        `env:"JWT_SIGNING_KEY"`
	TokenTTL      time.Duration `env:"JWT_ACCESS_TTL" envDefault:"24h"`
	// RateLimit is requests per minute per signed-in user; 0 disables limiting.
	RateLimit int `env:"RATE_LIMIT_RPM" envDefault:"120"`
	// RequireTLS refuses plain-HTTP requests, e.g. behind a TLS proxy.
	RequireTLS bool `env:"REQUIRE_TLS" envDefault:"false"`

	Telemetry TelemetryConfig
	Database  database.Config
}

// Load reads the optional dotenv files (".env" when none are given) and then
// parses the environment. Variables already set win over the files.
func Load(files ...string) (*Config, error) {
	if err := loadDotenv(files...); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDevAPI is Load for the local backend.
func LoadDevAPI(files ...string) (*DevAPIConfig, error) {
	if err := loadDotenv(files...); err != nil {
		return nil, err
	}

	cfg := &DevAPIConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Port == "" {
		return nil, errors.New("APP_PORT must not be empty")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("JWT_ACCESS_TTL must be positive")
	}
	return cfg, nil
}

func loadDotenv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Validate checks values the parser cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("BAX_API_BASE_URL must not be empty"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("BAX_HTTP_TIMEOUT must be positive"))
	}
	if c.Geocoding.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("BAX_GEOCODE_RPS must be positive"))
	}
	if c.Trip.MaxRequestHours < 1 || c.Trip.MaxRequestHours > 24 {
		errs = append(errs, errors.New("BAX_MAX_REQUEST_HOURS must be between 1 and 24"))
	}
	if c.Trip.MultiDayHours < 1 || c.Trip.MultiDayHours > 24 {
		errs = append(errs, errors.New("BAX_MULTI_DAY_HOURS must be between 1 and 24"))
	}
	if _, err := time.Parse("15:04", c.Trip.DefaultStartTime); err != nil {
		errs = append(errs, fmt.Errorf("BAX_DEFAULT_START_TIME must be HH:MM: %w", err))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NewLogger builds the root logger for a binary.
func NewLogger(w io.Writer, service, version, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
