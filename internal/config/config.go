package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"` // "*" allows any origin
	BodyLimit       int64         `mapstructure:"body_limit"`      // Bytes
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PlannerConfig holds evaluation defaults
type PlannerConfig struct {
	CacheSize             int           `mapstructure:"cache_size"`
	DefaultSLOP95         float64       `mapstructure:"default_slo_p95"`
	DefaultUtilizationCap float64       `mapstructure:"default_utilization_cap"`
	OptimizerWorkers      int           `mapstructure:"optimizer_workers"` // 0 means GOMAXPROCS
	OptimizeTimeout       time.Duration `mapstructure:"optimize_timeout"`
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// AuthConfig controls API key enforcement
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return finish(v)
}

// LoadFromEnv loads configuration primarily from environment variables
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // .env is optional

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.path", "./data/planner.db")

	v.SetDefault("planner.cache_size", 8192)
	v.SetDefault("planner.default_slo_p95", 2.0)
	v.SetDefault("planner.default_utilization_cap", 0.70)
	v.SetDefault("planner.optimizer_workers", 0)
	v.SetDefault("planner.optimize_timeout", 30*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	bindEnv("server.host", "SERVER_HOST")
	bindEnv("server.port", "SERVER_PORT")
	bindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	bindEnv("database.path", "DATABASE_PATH")

	bindEnv("planner.cache_size", "PLANNER_CACHE_SIZE")
	bindEnv("planner.optimizer_workers", "PLANNER_OPTIMIZER_WORKERS")

	bindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	bindEnv("rate_limit.rps", "RATE_LIMIT_RPS")
	bindEnv("rate_limit.burst", "RATE_LIMIT_BURST")

	bindEnv("auth.enabled", "AUTH_ENABLED")

	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.BodyLimit <= 0 {
		errs = append(errs, errors.New("server.body_limit must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.Planner.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("planner.cache_size must be positive, got %d", c.Planner.CacheSize))
	}
	if c.Planner.DefaultSLOP95 <= 0 {
		errs = append(errs, errors.New("planner.default_slo_p95 must be positive"))
	}
	if c.Planner.DefaultUtilizationCap <= 0 || c.Planner.DefaultUtilizationCap > 1 {
		errs = append(errs, errors.New("planner.default_utilization_cap must be in (0, 1]"))
	}
	if c.Planner.OptimizerWorkers < 0 {
		errs = append(errs, errors.New("planner.optimizer_workers must not be negative"))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			errs = append(errs, errors.New("rate_limit.rps must be positive when rate limiting is enabled"))
		}
		if c.RateLimit.Burst < 1 {
			errs = append(errs, errors.New("rate_limit.burst must be at least 1 when rate limiting is enabled"))
		}
	}

	return errors.Join(errs...)
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
