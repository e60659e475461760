package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL (or SUPABASE_DB_URL) is not set")

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	DatabaseURL           string
	DBMaxOpenConns        int
	AutoMigrate           bool
	RedisURL              string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CacheTTL              time.Duration
	GRPCPort              int
	GRPCReflectionEnabled bool
	HTTPPort              int
	RiskTopN              int
	ShutdownTimeout       time.Duration
}

// CacheEnabled reports whether a redis URL or address was configured.
func (c *Config) CacheEnabled() bool { return c.RedisURL != "" || c.RedisAddr != "" }

// HTTPEnabled reports whether the JSON API should be served.
func (c *Config) HTTPEnabled() bool { return c.HTTPPort > 0 }

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	p := &parser{}

	dbURL := getEnv("DATABASE_URL", os.Getenv("SUPABASE_DB_URL"))
	if dbURL == "" {
		p.errs = append(p.errs, ErrMissingDatabaseURL)
	}

	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		DatabaseURL:           dbURL,
		DBMaxOpenConns:        p.int("DB_MAX_OPEN_CONNS", 25),
		AutoMigrate:           p.bool("AUTO_MIGRATE", true),
		RedisURL:              os.Getenv("REDIS_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               p.int("REDIS_DB", 0),
		CacheTTL:              p.duration("CACHE_TTL", 10*time.Minute),
		GRPCPort:              p.int("GRPC_PORT", 50051),
		GRPCReflectionEnabled: p.bool("GRPC_REFLECTION_ENABLED", false),
		HTTPPort:              p.int("HTTP_PORT", 8080),
		RiskTopN:              p.int("RISK_TOP_N", 50),
		ShutdownTimeout:       p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.RiskTopN < 1 {
		p.errs = append(p.errs, fmt.Errorf("RISK_TOP_N must be positive, got %d", cfg.RiskTopN))
	}
	if cfg.DBMaxOpenConns < 1 {
		p.errs = append(p.errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", cfg.DBMaxOpenConns))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.AppEnv == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.EncoderConfig.CallerKey = "caller"
	zc.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	return zc.Build(zap.AddCaller())
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// parser collects every malformed variable so they can be reported together.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return fallback
	}
	return v
}

// duration accepts Go durations ("90s") or a bare number of seconds ("600").
func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return fallback
	}
	return v
}
