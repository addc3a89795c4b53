package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// IdempotencyRecordTTL is the durability window for stored outcomes.
	// Zero means records never expire.
	IdempotencyRecordTTL time.Duration
	// IdempotencyCacheTTL bounds staleness of the result cache; it is
	// deliberately short and independent of the record TTL.
	IdempotencyCacheTTL time.Duration

	CleanupInterval  time.Duration
	CleanupBatchSize int

	APIRateLimitPerMin int

	AuthEnabled  bool
	AuthIssuer   string
	AuthAudience string
	AuthSecret   string

	ReceiptArchiveEndpoint  string
	ReceiptArchiveAccessKey string
	ReceiptArchiveSecretKey string
	ReceiptArchiveBucket    string
	ReceiptArchiveUseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		CleanupBatchSize:        getEnvInt("IDEMPOTENCY_CLEANUP_BATCH", 500),
		APIRateLimitPerMin:      getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		AuthEnabled:             getEnvBool("AUTH_ENABLED", false),
		AuthIssuer:              getEnv("AUTH_JWT_ISSUER", "payment-idempotency-service"),
		AuthAudience:            getEnv("AUTH_JWT_AUDIENCE", "payment-idempotency-service-api"),
		AuthSecret:              os.Getenv("AUTH_JWT_SECRET"),
		ReceiptArchiveEndpoint:  os.Getenv("RECEIPT_ARCHIVE_ENDPOINT"),
		ReceiptArchiveAccessKey: os.Getenv("RECEIPT_ARCHIVE_ACCESS_KEY"),
		ReceiptArchiveSecretKey: os.Getenv("RECEIPT_ARCHIVE_SECRET_KEY"),
		ReceiptArchiveBucket:    getEnv("RECEIPT_ARCHIVE_BUCKET", "payment-receipts"),
		ReceiptArchiveUseSSL:    getEnvBool("RECEIPT_ARCHIVE_USE_SSL", true),
	}

	recordTTL, err := time.ParseDuration(getEnv("IDEMPOTENCY_RECORD_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse IDEMPOTENCY_RECORD_TTL: %w", err)
	}
	cfg.IdempotencyRecordTTL = recordTTL

	cacheTTL, err := time.ParseDuration(getEnv("IDEMPOTENCY_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("parse IDEMPOTENCY_CACHE_TTL: %w", err)
	}
	cfg.IdempotencyCacheTTL = cacheTTL

	cleanupInterval, err := time.ParseDuration(getEnv("IDEMPOTENCY_CLEANUP_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("parse IDEMPOTENCY_CLEANUP_INTERVAL: %w", err)
	}
	cfg.CleanupInterval = cleanupInterval

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.IdempotencyRecordTTL < 0 {
		errs = append(errs, "IDEMPOTENCY_RECORD_TTL must be >= 0 (0 = never expires)")
	}
	if c.IdempotencyCacheTTL <= 0 || c.IdempotencyCacheTTL > time.Hour {
		errs = append(errs, "IDEMPOTENCY_CACHE_TTL must be between 1s and 1h")
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, "IDEMPOTENCY_CLEANUP_INTERVAL must be > 0")
	}
	if c.CleanupBatchSize <= 0 {
		errs = append(errs, "IDEMPOTENCY_CLEANUP_BATCH must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.AuthEnabled && len(c.AuthSecret) < 32 {
		errs = append(errs, "AUTH_JWT_SECRET must be at least 32 chars when AUTH_ENABLED is set")
	}
	if c.ReceiptArchiveEndpoint != "" && (c.ReceiptArchiveAccessKey == "" || c.ReceiptArchiveSecretKey == "") {
		errs = append(errs, "RECEIPT_ARCHIVE_ACCESS_KEY and RECEIPT_ARCHIVE_SECRET_KEY are required when RECEIPT_ARCHIVE_ENDPOINT is set")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
