package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Log        LogConfig
	Downstream DownstreamConfig
	Breaker    BreakerConfig
	RateLimit  RateLimitConfig
	Stream     StreamConfig
	Timers     TimersConfig
	GeoCache   GeoCacheConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds structured logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// ServiceConfig holds the connection settings for one downstream service.
type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// DownstreamConfig holds the connection settings for the downstream services.
type DownstreamConfig struct {
	Geo      ServiceConfig
	Pricing  ServiceConfig
	Payments ServiceConfig
	Presence ServiceConfig
}

// BreakerConfig holds the shared circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	RollingWindow    time.Duration
}

// RateLimitConfig holds the outbound rate limiter tuning.
type RateLimitConfig struct {
	Capacity   float64
	RatePerSec float64
}

// StreamConfig holds the Redis stream names and consumer group identity.
type StreamConfig struct {
	Trips    string
	Payments string
	Presence string
	Group    string
	Consumer string
}

// TimersConfig holds the per-trip timer TTLs.
type TimersConfig struct {
	OfferTTL        time.Duration
	PinTTL          time.Duration
	RiderNoShowTTL  time.Duration
	DriverNoShowTTL time.Duration
}

// GeoCacheConfig holds the geospatial index cache tuning.
type GeoCacheConfig struct {
	MaxSize       int
	TTL           time.Duration
	SweepInterval time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "trips"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "trip-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Downstream: DownstreamConfig{
			Geo:      loadService("GEO", "http://localhost:8081"),
			Pricing:  loadService("PRICING", "http://localhost:8082"),
			Payments: loadService("PAYMENTS", "http://localhost:8083"),
			Presence: loadService("PRESENCE", "http://localhost:8084"),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getIntEnv("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getIntEnv("BREAKER_SUCCESS_THRESHOLD", 2),
			Timeout:          getDurationEnv("BREAKER_TIMEOUT", 30*time.Second),
			RollingWindow:    getDurationEnv("BREAKER_ROLLING_WINDOW", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			Capacity:   getFloatEnv("RATE_LIMIT_CAPACITY", 100),
			RatePerSec: getFloatEnv("RATE_LIMIT_PER_SEC", 50),
		},
		Stream: StreamConfig{
			Trips:    getEnv("STREAM_TRIPS", "stream:trips"),
			Payments: getEnv("STREAM_PAYMENTS", "stream:payments"),
			Presence: getEnv("STREAM_PRESENCE", "stream:presence"),
			Group:    getEnv("STREAM_GROUP", "trip-service"),
			Consumer: getEnv("STREAM_CONSUMER", hostnameOr("trip-service-1")),
		},
		Timers: TimersConfig{
			OfferTTL:        getDurationEnv("TIMER_OFFER_TTL", 2*time.Minute),
			PinTTL:          getDurationEnv("TIMER_PIN_TTL", 30*time.Minute),
			RiderNoShowTTL:  getDurationEnv("TIMER_RIDER_NO_SHOW_TTL", 10*time.Minute),
			DriverNoShowTTL: getDurationEnv("TIMER_DRIVER_NO_SHOW_TTL", 10*time.Minute),
		},
		GeoCache: GeoCacheConfig{
			MaxSize:       getIntEnv("GEO_CACHE_MAX_SIZE", 10000),
			TTL:           getDurationEnv("GEO_CACHE_TTL", time.Hour),
			SweepInterval: getDurationEnv("GEO_CACHE_SWEEP_INTERVAL", time.Minute),
		},
	}
}

func loadService(prefix, defaultURL string) ServiceConfig {
	return ServiceConfig{
		BaseURL: getEnv(prefix+"_BASE_URL", defaultURL),
		Timeout: getDurationEnv(prefix+"_TIMEOUT", 5*time.Second),
		Retries: getIntEnv(prefix+"_RETRIES", 2),
	}
}

func hostnameOr(defaultValue string) string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
