// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetHTTPRequestTimeout() time.Duration
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetAutoCloseSweepInterval() time.Duration
}

// AllocationConfig provides the business parameters of lead allocation.
type AllocationConfig interface {
	GetRestrictionPeriodMonths() int
	GetContractAutoCloseGrace() time.Duration
	GetDefaultWarrantyPercentage() int
	GetMinCoverageRadiusKm() float64
	GetMaxCoverageRadiusKm() float64
	GetContractLockTimeout() time.Duration
	GetPhoneDefaultRegion() string
}

// GeocoderConfig provides settings for the address geocoding fallback.
type GeocoderConfig interface {
	IsGeocoderEnabled() bool
	GetGeocoderCountryCodes() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool
	RequestTimeout  time.Duration

	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	AutoCloseSweepInterval time.Duration

	RestrictionPeriodMonths   int
	ContractAutoCloseGrace    time.Duration
	DefaultWarrantyPercentage int
	MinCoverageRadiusKm       float64
	MaxCoverageRadiusKm       float64
	ContractLockTimeout       time.Duration
	PhoneDefaultRegion        string

	GeocoderEnabled      bool
	GeocoderCountryCodes string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetHTTPRequestTimeout() time.Duration {
	return c.RequestTimeout
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool                { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string                { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                 { return c.AsynqConcurrency }
func (c *Config) GetAutoCloseSweepInterval() time.Duration { return c.AutoCloseSweepInterval }

// AllocationConfig implementation
func (c *Config) GetRestrictionPeriodMonths() int          { return c.RestrictionPeriodMonths }
func (c *Config) GetContractAutoCloseGrace() time.Duration { return c.ContractAutoCloseGrace }
func (c *Config) GetDefaultWarrantyPercentage() int        { return c.DefaultWarrantyPercentage }
func (c *Config) GetMinCoverageRadiusKm() float64          { return c.MinCoverageRadiusKm }
func (c *Config) GetMaxCoverageRadiusKm() float64          { return c.MaxCoverageRadiusKm }
func (c *Config) GetContractLockTimeout() time.Duration    { return c.ContractLockTimeout }
func (c *Config) GetPhoneDefaultRegion() string            { return c.PhoneDefaultRegion }

// GeocoderConfig implementation
func (c *Config) IsGeocoderEnabled() bool         { return c.GeocoderEnabled }
func (c *Config) GetGeocoderCountryCodes() string { return c.GeocoderCountryCodes }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	return cfg, nil
}

// LoadWithoutSecrets reads configuration for tools that never serve HTTP,
// such as the ops CLI. Only the database URL is required.
func LoadWithoutSecrets() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RequestTimeout:  mustDuration(getEnv("HTTP_REQUEST_TIMEOUT", "30s")),

		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		AutoCloseSweepInterval: mustDuration(getEnv("AUTO_CLOSE_SWEEP_INTERVAL", "15m")),

		RestrictionPeriodMonths:   mustInt(getEnv("RESTRICTION_PERIOD_MONTHS", "3")),
		ContractAutoCloseGrace:    mustDuration(getEnv("CONTRACT_AUTO_CLOSE_GRACE", "168h")),
		DefaultWarrantyPercentage: mustInt(getEnv("DEFAULT_WARRANTY_PERCENTAGE", "30")),
		MinCoverageRadiusKm:       mustFloat(getEnv("MIN_COVERAGE_RADIUS_KM", "10")),
		MaxCoverageRadiusKm:       mustFloat(getEnv("MAX_COVERAGE_RADIUS_KM", "200")),
		ContractLockTimeout:       mustDuration(getEnv("CONTRACT_LOCK_TIMEOUT", "5s")),
		PhoneDefaultRegion:        strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "BR")),

		GeocoderEnabled:      strings.EqualFold(getEnv("GEOCODER_ENABLED", "false"), "true"),
		GeocoderCountryCodes: getEnv("GEOCODER_COUNTRY_CODES", "br"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that do not depend on required secrets.
func (c *Config) Validate() error {
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.RestrictionPeriodMonths < 1 {
		return fmt.Errorf("RESTRICTION_PERIOD_MONTHS must be at least 1")
	}
	if c.ContractAutoCloseGrace <= 0 {
		return fmt.Errorf("CONTRACT_AUTO_CLOSE_GRACE must be a positive duration")
	}
	if c.DefaultWarrantyPercentage < 0 || c.DefaultWarrantyPercentage > 100 {
		return fmt.Errorf("DEFAULT_WARRANTY_PERCENTAGE must be between 0 and 100")
	}
	if c.MinCoverageRadiusKm <= 0 {
		return fmt.Errorf("MIN_COVERAGE_RADIUS_KM must be positive")
	}
	if c.MaxCoverageRadiusKm < c.MinCoverageRadiusKm {
		return fmt.Errorf("MAX_COVERAGE_RADIUS_KM must not be below MIN_COVERAGE_RADIUS_KM")
	}
	if c.ContractLockTimeout <= 0 {
		return fmt.Errorf("CONTRACT_LOCK_TIMEOUT must be a positive duration")
	}
	if c.AsynqConcurrency <= 0 {
		c.AsynqConcurrency = 10
	}
	if c.AutoCloseSweepInterval <= 0 {
		c.AutoCloseSweepInterval = 15 * time.Minute
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
