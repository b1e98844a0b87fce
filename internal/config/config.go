// Package config loads runtime settings for the relay from the environment,
// with an optional .env file, and applies defaults and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Defaults applied when a value is unset or out of range.
const (
	DefaultAddr            = "localhost:8080"
	DefaultMaxMessageSize  = 4096
	DefaultMaxNewsBodySize = 64 << 10
	DefaultNewsReadTimeout = 10 * time.Second
	DefaultPingInterval    = 10 * time.Second
	DefaultPongWait        = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultWelcomeMessage  = "Welcome!!!"
)

// RateLimitConfig defines the per-connection relay message rate limit.
// A zero Burst disables limiting.
type RateLimitConfig struct {
	Burst    int           `env:"RATE_LIMIT_BURST" default:"0"`
	Interval time.Duration `env:"RATE_LIMIT_INTERVAL" default:"1s"`
}

// Enabled reports whether the rate limit applies.
func (r RateLimitConfig) Enabled() bool {
	return r.Burst > 0
}

// Config holds the relay configuration.
type Config struct {
	Addr      string `env:"RELAY_ADDR" default:"localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
	StaticDir      string   `env:"STATIC_DIR"`
	WelcomeMessage string   `env:"WELCOME_MESSAGE" default:"Welcome!!!"`

	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" default:"4096"`
	MaxNewsBodySize int64         `env:"MAX_NEWS_BODY_SIZE" default:"65536"`
	NewsReadTimeout time.Duration `env:"NEWS_READ_TIMEOUT" default:"10s"`

	PingInterval    time.Duration `env:"PING_INTERVAL" default:"10s"`
	PongWait        time.Duration `env:"PONG_WAIT" default:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	RateLimit RateLimitConfig
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	return &Config{
		Addr:            DefaultAddr,
		LogLevel:        "info",
		LogFormat:       "text",
		WelcomeMessage:  DefaultWelcomeMessage,
		MaxMessageSize:  DefaultMaxMessageSize,
		MaxNewsBodySize: DefaultMaxNewsBodySize,
		NewsReadTimeout: DefaultNewsReadTimeout,
		PingInterval:    DefaultPingInterval,
		PongWait:        DefaultPongWait,
		WriteTimeout:    DefaultWriteTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		RateLimit: RateLimitConfig{
			Interval: time.Second,
		},
	}
}

// Load reads the given .env files (".env" when none are named), then the
// process environment. A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("No .env file loaded, using environment variables", "error", err)
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Sanitize replaces unset or non-positive values with defaults and
// normalizes the origin list.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxNewsBodySize <= 0 {
		c.MaxNewsBodySize = DefaultMaxNewsBodySize
	}
	if c.NewsReadTimeout <= 0 {
		c.NewsReadTimeout = DefaultNewsReadTimeout
	}
	if c.PingInterval < 0 {
		c.PingInterval = 0
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.RateLimit.Burst < 0 {
		c.RateLimit.Burst = 0
	}
	if c.RateLimit.Interval <= 0 {
		c.RateLimit.Interval = time.Second
	}

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins
}

// Validate checks cross-field rules that defaults cannot repair.
func (c *Config) Validate() error {
	if c.PingInterval > 0 && c.PingInterval >= c.PongWait {
		return fmt.Errorf("%w: PING_INTERVAL (%s) must be shorter than PONG_WAIT (%s)",
			ErrInvalidConfig, c.PingInterval, c.PongWait)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be \"text\" or \"json\", got %q", ErrInvalidConfig, c.LogFormat)
	}

	return nil
}
