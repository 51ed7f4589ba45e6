package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port            int
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Database
	DatabaseURL      string
	DBMaxConnections int

	// Import pipeline
	FieldMapPath   string
	MaxUploadBytes int64

	// Clerk Auth (optional; auth is disabled when the key is empty)
	ClerkSecretKey string

	// S3 file staging (optional; staging is disabled when bucket is empty)
	S3Bucket    string
	S3Region    string
	AWSEndpoint string // LocalStack/MinIO in development
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:             getEnvInt("PORT", 8080),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout:  getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:      getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DBMaxConnections: getEnvInt("DB_MAX_CONNECTIONS", 25),
		FieldMapPath:     getEnv("FIELD_MAP_PATH", "fieldmap.json"),
		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
		ClerkSecretKey:   getEnv("CLERK_SECRET_KEY", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		AWSEndpoint:      getEnv("AWS_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ClerkSecretKey == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("CLERK_SECRET_KEY is required in production")
	}

	return cfg, nil
}

// AuthEnabled reports whether protected routes should require a Clerk JWT.
func (c *Config) AuthEnabled() bool {
	return c.ClerkSecretKey != ""
}

// StagingEnabled reports whether S3 file staging is configured.
func (c *Config) StagingEnabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
