package config

import (
	"testing"
	"time"
)

// configEnvVars are cleared before each case so the host environment cannot leak in.
var configEnvVars = []string{
	"SERVER_PORT",
	"UPSTREAM_URL",
	"DATABASE_URL",
	"REDIS_URL",
	"FRONTEND_URL",
	"ADMIN_TOKEN",
	"ENABLE_HSTS",
	"SERVER_DEBUG_MODE",
	"LOG_FORMAT",
	"OTEL_ENABLED",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_TRACES_SAMPLER_RATIO",
	"RATE_LIMIT_ALGORITHM",
	"RATE_LIMIT_STORE",
	"RATE_LIMIT_POLICY_FILE",
	"RATE_LIMIT_RETENTION",
	"RATE_LIMIT_SWEEP_PROBABILITY",
	"RATE_LIMIT_SWEEP_INTERVAL",
	"RATE_LIMIT_RELOAD_INTERVAL",
	"RATE_LIMIT_EDGE_HEADER",
	"RATE_LIMIT_TRUSTED_PROXIES",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != "8080" {
					t.Errorf("Expected default ServerPort to be '8080', got '%s'", cfg.ServerPort)
				}
				if cfg.RateLimit.Algorithm != AlgorithmFixedWindow {
					t.Errorf("Expected default algorithm %s, got %s", AlgorithmFixedWindow, cfg.RateLimit.Algorithm)
				}
				if cfg.RateLimit.Store != StoreMemory {
					t.Errorf("Expected default store %s, got %s", StoreMemory, cfg.RateLimit.Store)
				}
				if cfg.RateLimit.Retention != time.Hour {
					t.Errorf("Expected default retention 1h, got %s", cfg.RateLimit.Retention)
				}
				if cfg.RateLimit.SweepProbability != 0.01 {
					t.Errorf("Expected default sweep probability 0.01, got %v", cfg.RateLimit.SweepProbability)
				}
				if cfg.RateLimit.EdgeHeader != "CF-Connecting-IP" {
					t.Errorf("Expected default edge header CF-Connecting-IP, got %s", cfg.RateLimit.EdgeHeader)
				}
				if cfg.RateLimit.TrustedProxies != nil {
					t.Errorf("Expected no trusted proxies, got %v", cfg.RateLimit.TrustedProxies)
				}
			},
		},
		{
			name: "overrides",
			envVars: map[string]string{
				"SERVER_PORT":                  "9090",
				"UPSTREAM_URL":                 "http://app:3000",
				"REDIS_URL":                    "redis://localhost:6379/0",
				"RATE_LIMIT_STORE":             "Redis",
				"RATE_LIMIT_RETENTION":         "2h",
				"RATE_LIMIT_SWEEP_PROBABILITY": "0.05",
				"RATE_LIMIT_SWEEP_INTERVAL":    "30",
				"RATE_LIMIT_TRUSTED_PROXIES":   "10.0.0.0/8, 172.16.0.0/12 ,",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != "9090" {
					t.Errorf("Expected ServerPort '9090', got '%s'", cfg.ServerPort)
				}
				if cfg.UpstreamURL != "http://app:3000" {
					t.Errorf("Expected UpstreamURL 'http://app:3000', got '%s'", cfg.UpstreamURL)
				}
				if cfg.RateLimit.Store != StoreRedis {
					t.Errorf("Expected store redis, got %s", cfg.RateLimit.Store)
				}
				if cfg.RateLimit.Retention != 2*time.Hour {
					t.Errorf("Expected retention 2h, got %s", cfg.RateLimit.Retention)
				}
				if cfg.RateLimit.SweepProbability != 0.05 {
					t.Errorf("Expected sweep probability 0.05, got %v", cfg.RateLimit.SweepProbability)
				}
				if cfg.RateLimit.SweepInterval != 30*time.Second {
					t.Errorf("Expected sweep interval 30s, got %s", cfg.RateLimit.SweepInterval)
				}
				if len(cfg.RateLimit.TrustedProxies) != 2 || cfg.RateLimit.TrustedProxies[1] != "172.16.0.0/12" {
					t.Errorf("Unexpected trusted proxies %v", cfg.RateLimit.TrustedProxies)
				}
			},
		},
		{
			name:        "redis store without REDIS_URL",
			envVars:     map[string]string{"RATE_LIMIT_STORE": "redis"},
			expectError: true,
		},
		{
			name:        "token bucket requires memory store",
			envVars:     map[string]string{"RATE_LIMIT_ALGORITHM": "token_bucket", "RATE_LIMIT_STORE": "redis", "REDIS_URL": "redis://x"},
			expectError: true,
		},
		{
			name:        "unknown algorithm",
			envVars:     map[string]string{"RATE_LIMIT_ALGORITHM": "sliding_log"},
			expectError: true,
		},
		{
			name:        "unknown store",
			envVars:     map[string]string{"RATE_LIMIT_STORE": "memcached"},
			expectError: true,
		},
		{
			name:        "sweep probability out of range",
			envVars:     map[string]string{"RATE_LIMIT_SWEEP_PROBABILITY": "1.5"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range configEnvVars {
				t.Setenv(key, "")
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if cfg == nil {
				t.Fatal("Config is nil")
			}

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"env var set to 'true'", "true", false, true},
		{"env var set to '1'", "1", false, true},
		{"env var set to 'yes'", "yes", false, true},
		{"env var set to 'false'", "false", true, false},
		{"env var not set", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_KEY", tt.value)
			got := getEnvBool("TEST_BOOL_KEY", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool(TEST_BOOL_KEY, %v) = %v, want %v", tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "15m", 15 * time.Minute},
		{"seconds", "90", 90 * time.Second},
		{"garbage falls back", "soon", time.Minute},
		{"unset", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION_KEY", tt.value)
			if got := getEnvDuration("TEST_DURATION_KEY", time.Minute); got != tt.want {
				t.Errorf("getEnvDuration() = %s, want %s", got, tt.want)
			}
		})
	}
}
