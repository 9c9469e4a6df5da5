package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"paybridge/internal/pkg/pesepay"
)

const (
	defaultHTTPAddr         = ":8080"
	defaultDatabaseURL      = "paybridge.db"
	defaultJWTSecret        = "change-me-jwt-secret"
	defaultJWTAccessTTL     = "12h"
	defaultWebhookSecret    = "change-me-webhook-secret"
	defaultAdminUsername    = "admin"
	defaultHTTPTimeout      = "5m"
	defaultAmbiguousStatus  = AmbiguousCancel
	defaultPublicBaseURL    = "http://localhost:8080"
	defaultSweepOlderThan   = "15m"
	defaultSweepLimit       = "200"
	defaultSweepConcurrency = "4"
)

// Ambiguous status policies for processor responses that are neither SUCCESS
// nor CANCELLED.
const (
	AmbiguousCancel  = "cancel"
	AmbiguousPending = "pending"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string

	PesepayBaseURL        string
	PesepayIntegrationKey string
	PesepayEncryptionKey  string
	PesepayHTTPTimeout    time.Duration
	PesepayDebug          bool
	AmbiguousStatus       string
	WebhookSecret         string

	// PublicBaseURL is where the processor reaches this service.
	PublicBaseURL string

	// StoreReturnURL is the shop page the payer lands on after paying. The
	// order id and key are appended as query parameters.
	StoreReturnURL string

	JWTSecret         string
	JWTAccessTTL      time.Duration
	AdminUsername     string
	AdminPasswordHash string

	SweepOlderThan   time.Duration
	SweepLimit       int
	SweepConcurrency int

	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))

	cfg.PesepayBaseURL = strings.TrimSpace(getEnv("PESEPAY_BASE_URL", pesepay.DefaultBaseURL))
	cfg.PesepayIntegrationKey = strings.TrimSpace(os.Getenv("PESEPAY_INTEGRATION_KEY"))
	cfg.PesepayEncryptionKey = strings.TrimSpace(os.Getenv("PESEPAY_ENCRYPTION_KEY"))
	cfg.PesepayDebug = parseBoolEnv("PESEPAY_DEBUG", "false")
	cfg.AmbiguousStatus = strings.ToLower(strings.TrimSpace(getEnv("PESEPAY_AMBIGUOUS_STATUS", defaultAmbiguousStatus)))
	cfg.WebhookSecret = strings.TrimSpace(getEnv("PESEPAY_WEBHOOK_SECRET", defaultWebhookSecret))

	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("PUBLIC_BASE_URL", defaultPublicBaseURL)), "/")
	cfg.StoreReturnURL = strings.TrimSpace(getEnv("STORE_RETURN_URL", cfg.PublicBaseURL+"/checkout/order-received"))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.AdminUsername = strings.TrimSpace(getEnv("ADMIN_USERNAME", defaultAdminUsername))
	cfg.AdminPasswordHash = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	var err error
	cfg.PesepayHTTPTimeout, err = parseDurationEnv("PESEPAY_HTTP_TIMEOUT", defaultHTTPTimeout)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.SweepOlderThan, err = parseDurationEnv("SWEEP_OLDER_THAN", defaultSweepOlderThan)
	if err != nil {
		return nil, err
	}
	cfg.SweepLimit, err = parseIntEnv("SWEEP_LIMIT", defaultSweepLimit)
	if err != nil {
		return nil, err
	}
	cfg.SweepConcurrency, err = parseIntEnv("SWEEP_CONCURRENCY", defaultSweepConcurrency)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("pesepay config: base_url=%s timeout=%s ambiguous_status=%s debug=%t", cfg.PesepayBaseURL, cfg.PesepayHTTPTimeout, cfg.AmbiguousStatus, cfg.PesepayDebug)

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.PesepayHTTPTimeout <= 0 {
		return fmt.Errorf("PESEPAY_HTTP_TIMEOUT must be > 0")
	}
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.SweepOlderThan <= 0 {
		return fmt.Errorf("SWEEP_OLDER_THAN must be > 0")
	}
	if cfg.SweepLimit <= 0 {
		return fmt.Errorf("SWEEP_LIMIT must be > 0")
	}
	if cfg.SweepConcurrency <= 0 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be > 0")
	}
	if cfg.AmbiguousStatus != AmbiguousCancel && cfg.AmbiguousStatus != AmbiguousPending {
		return fmt.Errorf("PESEPAY_AMBIGUOUS_STATUS must be one of: cancel, pending")
	}
	if cfg.PesepayEncryptionKey != "" && len(cfg.PesepayEncryptionKey) < 16 {
		return fmt.Errorf("PESEPAY_ENCRYPTION_KEY must be at least 16 characters")
	}
	if cfg.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must not be empty")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.WebhookSecret, defaultWebhookSecret) {
			return fmt.Errorf("in prod/release PESEPAY_WEBHOOK_SECRET must be set and not default")
		}
		if cfg.AdminPasswordHash == "" {
			return fmt.Errorf("in prod/release ADMIN_PASSWORD_HASH must be set")
		}
		if !strings.HasPrefix(cfg.PublicBaseURL, "https://") {
			return fmt.Errorf("in prod/release PUBLIC_BASE_URL must use https")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
