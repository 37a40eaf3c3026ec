package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rate limit algorithms.
const (
	AlgorithmFixedWindow = "fixed_window"
	AlgorithmTokenBucket = "token_bucket"
	AlgorithmUlule       = "ulule"
)

// Counter stores.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	UpstreamURL     string
	DatabaseURL     string
	RedisURL        string
	FrontendURL     string
	AdminToken      string
	EnableHSTS      bool
	ServerDebugMode bool
	LogFormat       string
	OTELEnabled     bool
	OTELEndpoint    string
	OTELInsecure    bool
	OTELSampleRatio float64

	RateLimit RateLimitConfig
}

// RateLimitConfig holds the admission-control settings.
type RateLimitConfig struct {
	Algorithm        string
	Store            string
	PolicyFile       string
	Retention        time.Duration
	SweepProbability float64
	SweepInterval    time.Duration
	ReloadInterval   time.Duration
	EdgeHeader       string
	TrustedProxies   []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		UpstreamURL:     getEnv("UPSTREAM_URL", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1.0),
		RateLimit: RateLimitConfig{
			Algorithm:        strings.ToLower(getEnv("RATE_LIMIT_ALGORITHM", AlgorithmFixedWindow)),
			Store:            strings.ToLower(getEnv("RATE_LIMIT_STORE", StoreMemory)),
			PolicyFile:       getEnv("RATE_LIMIT_POLICY_FILE", ""),
			Retention:        getEnvDuration("RATE_LIMIT_RETENTION", time.Hour),
			SweepProbability: getEnvFloat("RATE_LIMIT_SWEEP_PROBABILITY", 0.01),
			SweepInterval:    getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
			ReloadInterval:   getEnvDuration("RATE_LIMIT_RELOAD_INTERVAL", time.Minute),
			EdgeHeader:       getEnv("RATE_LIMIT_EDGE_HEADER", "CF-Connecting-IP"),
			TrustedProxies:   getEnvList("RATE_LIMIT_TRUSTED_PROXIES"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	rl := c.RateLimit
	switch rl.Algorithm {
	case AlgorithmFixedWindow, AlgorithmUlule:
	case AlgorithmTokenBucket:
		if rl.Store != StoreMemory {
			return fmt.Errorf("RATE_LIMIT_ALGORITHM=%s only supports RATE_LIMIT_STORE=%s", AlgorithmTokenBucket, StoreMemory)
		}
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_ALGORITHM %q", rl.Algorithm)
	}

	switch rl.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_STORE=%s", StoreRedis)
		}
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_STORE %q", rl.Store)
	}

	if rl.SweepProbability < 0 || rl.SweepProbability > 1 {
		return fmt.Errorf("RATE_LIMIT_SWEEP_PROBABILITY must be between 0 and 1, got %v", rl.SweepProbability)
	}
	if rl.Retention <= 0 {
		return fmt.Errorf("RATE_LIMIT_RETENTION must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "15m") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
