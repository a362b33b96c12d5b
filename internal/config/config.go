// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage backend ("s3" or "memory")
	StorageBackend string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Admin credential: bcrypt hash preferred, plain fallback.
	AdminPasswordHash string
	AdminPassword     string

	// Uploads
	MaxUploadSize int64
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:       envOr("METRICS_ADDR", ":9090"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogFormat:         envOr("LOG_FORMAT", "json"),
		StorageBackend:    envOr("STORAGE_BACKEND", "s3"),
		S3Endpoint:        envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:          envOr("S3_BUCKET", "pubfiles"),
		S3AccessKey:       envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:       envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:          envOr("S3_REGION", "us-east-1"),
		S3UseSSL:          envBool("S3_USE_SSL", false),
		SessionSecret:     envOr("SESSION_SECRET", ""),
		SessionTTL:        envDuration("SESSION_TTL", 24*time.Hour),
		AdminPasswordHash: envOr("ADMIN_PASSWORD_HASH", ""),
		AdminPassword:     envOr("ADMIN_PASSWORD", ""),
		MaxUploadSize:     envInt64("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB default
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.AdminPasswordHash == "" && cfg.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH or ADMIN_PASSWORD is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
