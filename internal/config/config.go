// Package config loads the process configuration. A .env file is read first
// when present, then every section is filled from the environment with
// envconfig, falling back to the defaults declared in the struct tags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

// Config aggregates every section.
type Config struct {
	Server        ServerConfig
	Providers     ProvidersConfig
	Store         StoreConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Log           LogConfig
}

// ServerConfig contains HTTP server settings and timeouts. WriteTimeout
// defaults to zero so the event stream is not cut off.
type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
}

// ProvidersConfig holds upstream endpoints and per-provider request policies.
type ProvidersConfig struct {
	OpenMeteoBaseURL string `envconfig:"OPEN_METEO_BASE_URL" default:"https://api.open-meteo.com/v1/forecast"`
	GeocodingBaseURL string `envconfig:"GEOCODING_BASE_URL" default:"https://geocoding-api.open-meteo.com/v1/search"`
	MetNoBaseURL     string `envconfig:"METNO_BASE_URL" default:"https://api.met.no/weatherapi/locationforecast/2.0/compact"`
	MetNoUserAgent   string `envconfig:"METNO_USER_AGENT" default:"weather-switch-app/1.0"`

	OpenWeatherTimeout time.Duration `envconfig:"OPENWEATHER_TIMEOUT" default:"8s"`
	OpenWeatherRetries int           `envconfig:"OPENWEATHER_RETRIES" default:"1"`
	MetNoTimeout       time.Duration `envconfig:"METNO_TIMEOUT" default:"14s"`
	MetNoRetries       int           `envconfig:"METNO_RETRIES" default:"2"`

	DefaultProvider string `envconfig:"DEFAULT_PROVIDER" default:"openWeather"`

	HTTPTimeout           time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	CircuitBreakerEnabled bool          `envconfig:"CIRCUIT_BREAKER_ENABLED" default:"true"`

	// Outbound request budget per upstream; zero disables throttling.
	ThrottlePerSecond float64 `envconfig:"UPSTREAM_RPS" default:"5"`
	ThrottleBurst     int     `envconfig:"UPSTREAM_BURST" default:"5"`
}

// StoreConfig controls the weather store session.
type StoreConfig struct {
	Debounce time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"450ms"`

	// CacheBackend is "memory" or "redis".
	CacheBackend string `envconfig:"CACHE_BACKEND" default:"memory"`
}

// RedisConfig is shared by the Redis cache and the Redis rate limiter.
type RedisConfig struct {
	Enabled      bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Addr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	MaxRetries   int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// DatabaseConfig contains PostgreSQL settings for the search audit log.
type DatabaseConfig struct {
	Enabled               bool          `envconfig:"DATABASE_ENABLED" default:"false"`
	Host                  string        `envconfig:"DB_HOST" default:"localhost"`
	Port                  int           `envconfig:"DB_PORT" default:"5432"`
	User                  string        `envconfig:"DB_USER" default:"weather"`
	Password              string        `envconfig:"DB_PASSWORD"`
	Database              string        `envconfig:"DB_NAME" default:"weather_switch"`
	SSLMode               string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConnections        int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	MaxIdleConnections    int           `envconfig:"DB_MAX_IDLE_CONNECTIONS" default:"2"`
	ConnectionMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	AutoMigrate           bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// ObservabilityConfig contains tracing settings. An empty endpoint disables OTLP export.
type ObservabilityConfig struct {
	ServiceName  string  `envconfig:"SERVICE_NAME" default:"weather-switch"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRate   float64 `envconfig:"OTEL_SAMPLE_RATE" default:"0.1"`
}

// RateLimitConfig bounds inbound requests per client. A zero limit disables it.
type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// LogConfig selects the log level and an optional rotated log file.
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	File       string `envconfig:"LOG_FILE"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"50"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"14"`
}

// Load reads .env (if any) and the environment.
//
// Returns:
//   - *Config: Populated configuration
//   - error: Unreadable .env file, malformed variable or invalid value
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	return FromEnv()
}

// FromEnv fills a Config from the current environment only.
func FromEnv() (*Config, error) {
	var cfg Config

	sections := []interface{}{
		&cfg.Server,
		&cfg.Providers,
		&cfg.Store,
		&cfg.Redis,
		&cfg.Database,
		&cfg.Observability,
		&cfg.RateLimit,
		&cfg.Log,
	}

	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("error loading configuration data: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the application cannot start with.
func (c *Config) Validate() error {
	if _, err := domain.ParseProvider(c.Providers.DefaultProvider); err != nil {
		return fmt.Errorf("invalid DEFAULT_PROVIDER: %w", err)
	}

	if c.Providers.OpenWeatherRetries < 0 || c.Providers.MetNoRetries < 0 {
		return errors.New("provider retries must not be negative")
	}

	switch strings.ToLower(c.Store.CacheBackend) {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("CACHE_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q", c.Store.CacheBackend)
	}

	return nil
}

// Policies returns the configured request policy of each provider.
func (c *Config) Policies() map[domain.Provider]domain.RequestPolicy {
	return map[domain.Provider]domain.RequestPolicy{
		domain.ProviderOpenWeather: {Timeout: c.Providers.OpenWeatherTimeout, Retries: c.Providers.OpenWeatherRetries},
		domain.ProviderWeatherAPI:  {Timeout: c.Providers.MetNoTimeout, Retries: c.Providers.MetNoRetries},
	}
}

// DefaultProvider returns the provider selected when a session starts.
func (c *Config) DefaultProvider() domain.Provider {
	return domain.Provider(c.Providers.DefaultProvider)
}
