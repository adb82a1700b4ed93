package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultAppName          = "HarborCore"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownSeconds  = 10
	defaultIdempotencyTTL   = "24h"
	defaultInterbankCeiling = "50000.00"
	defaultCallbackPerMin   = 60
)

// Config captures application runtime configuration. Values are read from
// environment variables, with an optional .env file for local development.
type Config struct {
	AppName          string
	AppEnv           string
	Port             string
	LogLevel         string
	DatabaseURL      string
	RedisURL         string
	ShutdownPeriod   time.Duration
	IdempotencyTTL   time.Duration
	InterbankCeiling decimal.Decimal
	CallbackPerMin   int
}

// Load reads configuration from the environment and populates a Config.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownSeconds)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("INTERBANK_CEILING", defaultInterbankCeiling)
	v.SetDefault("CALLBACK_RATE_LIMIT_PER_MINUTE", defaultCallbackPerMin)

	// The .env file is optional; environment variables alone are enough.
	_ = v.ReadInConfig()

	cfg := Config{
		AppName:        v.GetString("APP_NAME"),
		AppEnv:         strings.ToLower(v.GetString("APP_ENV")),
		Port:           v.GetString("PORT"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		ShutdownPeriod: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		CallbackPerMin: v.GetInt("CALLBACK_RATE_LIMIT_PER_MINUTE"),
	}

	ttl, err := time.ParseDuration(v.GetString("IDEMPOTENCY_TTL"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}
	cfg.IdempotencyTTL = ttl

	ceiling, err := decimal.NewFromString(v.GetString("INTERBANK_CEILING"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid INTERBANK_CEILING: %w", err)
	}
	if ceiling.LessThanOrEqual(decimal.Zero) {
		return Config{}, fmt.Errorf("INTERBANK_CEILING must be positive")
	}
	cfg.InterbankCeiling = ceiling

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the application runs in a development environment,
// where in-memory backends may substitute for Postgres and Redis.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
