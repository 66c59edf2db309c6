package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required"`

	// Redis is optional: without it the snapshot cache is disabled and
	// exports are rendered inline.
	RedisAddr     string        `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	SaveDebounce    time.Duration `mapstructure:"SAVE_DEBOUNCE" validate:"gt=0"`
	LoadSettle      time.Duration `mapstructure:"LOAD_SETTLE" validate:"gte=0"`
	MeasureDebounce time.Duration `mapstructure:"MEASURE_DEBOUNCE" validate:"gt=0"`
	DecimalComma    bool          `mapstructure:"DECIMAL_COMMA"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST" validate:"gte=1"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var durationKeys = map[string]func(*Config, time.Duration){
	"SHUTDOWN_TIMEOUT": func(c *Config, d time.Duration) { c.ShutdownTimeout = d },
	"CACHE_TTL":        func(c *Config, d time.Duration) { c.CacheTTL = d },
	"SAVE_DEBOUNCE":    func(c *Config, d time.Duration) { c.SaveDebounce = d },
	"LOAD_SETTLE":      func(c *Config, d time.Duration) { c.LoadSettle = d },
	"MEASURE_DEBOUNCE": func(c *Config, d time.Duration) { c.MeasureDebounce = d },
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.neoncad")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "neoncad.db")
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("SAVE_DEBOUNCE", "2s")
	v.SetDefault("LOAD_SETTLE", "1s")
	v.SetDefault("MEASURE_DEBOUNCE", "50ms")
	v.SetDefault("DECIMAL_COMMA", false)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	// Optional config file
	_ = v.ReadInConfig()

	keys := []string{
		"APP_ENV",
		"HTTP_ADDR",
		"SHUTDOWN_TIMEOUT",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_DRIVER",
		"DATABASE_URL",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"CACHE_TTL",
		"ASYNQ_CONCURRENCY",
		"GOMAXPROCS",
		"SAVE_DEBOUNCE",
		"LOAD_SETTLE",
		"MEASURE_DEBOUNCE",
		"DECIMAL_COMMA",
		"RATE_LIMIT_RPS",
		"RATE_LIMIT_BURST",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Durations may arrive as plain strings from the environment.
	for key, set := range durationKeys {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		set(&c, d)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// RedisEnabled reports whether a redis address is configured.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }
