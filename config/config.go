// Package config loads server and CLI settings: built-in defaults, then an
// optional YAML file, then LEAVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	// Embedded zone database; slim container images ship without one.
	_ "time/tzdata"

	"github.com/warp/leave-portal/leave"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"

	defaultJWTSecret = "dev-secret-change-me"
)

type Config struct {
	Addr               string        `yaml:"addr,omitempty"`
	Store              string        `yaml:"store,omitempty"`
	SQLitePath         string        `yaml:"sqlite_path,omitempty"`
	RedisURL           string        `yaml:"redis_url,omitempty"`
	RedisPrefix        string        `yaml:"redis_prefix,omitempty"`
	JWTSecret          string        `yaml:"jwt_secret,omitempty"`
	TokenTTL           time.Duration `yaml:"token_ttl,omitempty"`
	Timezone           string        `yaml:"timezone,omitempty"`
	LogLevel           string        `yaml:"log_level,omitempty"`
	Environment        string        `yaml:"environment,omitempty"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins,omitempty"`
	SeedRoster         bool          `yaml:"seed_roster"`
	EnableScenarios    bool          `yaml:"enable_scenarios"`
	Policy             leave.Policy  `yaml:"policy,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		Store:              StoreSQLite,
		SQLitePath:         "./leave.db",
		RedisPrefix:        "leave",
		JWTSecret:          defaultJWTSecret,
		TokenTTL:           12 * time.Hour,
		Timezone:           "Europe/Istanbul",
		LogLevel:           "info",
		Environment:        "development",
		CORSAllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		SeedRoster:         true,
		EnableScenarios:    false,
		Policy:             leave.DefaultPolicy(),
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. A missing file is an error only when path was given explicitly.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("LEAVE_ADDR", c.Addr)
	c.Store = getEnv("LEAVE_STORE", c.Store)
	c.SQLitePath = getEnv("LEAVE_SQLITE_PATH", c.SQLitePath)
	c.RedisURL = getEnv("LEAVE_REDIS_URL", c.RedisURL)
	c.RedisPrefix = getEnv("LEAVE_REDIS_PREFIX", c.RedisPrefix)
	c.JWTSecret = getEnv("LEAVE_JWT_SECRET", c.JWTSecret)
	c.TokenTTL = getEnvDuration("LEAVE_TOKEN_TTL", c.TokenTTL)
	c.Timezone = getEnv("LEAVE_TIMEZONE", c.Timezone)
	c.LogLevel = getEnv("LEAVE_LOG_LEVEL", c.LogLevel)
	c.Environment = getEnv("LEAVE_ENV", c.Environment)
	if origins := getEnv("LEAVE_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.CORSAllowedOrigins = splitList(origins)
	}
	c.SeedRoster = getEnvBool("LEAVE_SEED_ROSTER", c.SeedRoster)
	c.EnableScenarios = getEnvBool("LEAVE_ENABLE_SCENARIOS", c.EnableScenarios)
	c.Policy.MaxDaysPerRequest = getEnvInt("LEAVE_MAX_DAYS_PER_REQUEST", c.Policy.MaxDaysPerRequest)
	c.Policy.MaxConcurrent = getEnvInt("LEAVE_MAX_CONCURRENT", c.Policy.MaxConcurrent)
	c.Policy.AnnualEntitlement = getEnvInt("LEAVE_ANNUAL_ENTITLEMENT", c.Policy.AnnualEntitlement)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("sqlite_path is required for the sqlite store"))
		}
	case StoreRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("redis_url is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store must be one of memory, sqlite, redis; got %q", c.Store))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.Environment == "production" && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("jwt_secret must be changed in production"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if _, err := ResolveTimezone(c); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error; got %q", c.LogLevel))
	}
	if c.Policy.MaxDaysPerRequest <= 0 {
		errs = append(errs, errors.New("policy.max_days_per_request must be positive"))
	}
	if c.Policy.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("policy.max_concurrent must be positive"))
	}
	if c.Policy.AnnualEntitlement < 0 {
		errs = append(errs, errors.New("policy.annual_entitlement must not be negative"))
	}
	return errors.Join(errs...)
}

// ResolveTimezone returns the location used for "today". Empty means UTC.
func ResolveTimezone(cfg Config) (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid configured timezone %q: %w", cfg.Timezone, err)
	}
	return loc, nil
}
