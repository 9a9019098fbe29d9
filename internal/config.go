package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env         string
	LogLevel    string
	Port        uint16
	DatabaseUrl string // empty runs on the in-memory store (dev only)

	Business BusinessConfig
	Payments PaymentsConfig
	Stripe   StripeConfig
	MP       MercadoPagoConfig
	Redis    RedisConfig
	Events   EventsConfig
	Sentry   SentryConfig

	CartSweepInterval time.Duration
	CORSOrigins       []string
}

// BusinessConfig holds the locale the workflows run in.
type BusinessConfig struct {
	Timezone       *time.Location
	Currency       string
	DefaultTaxRate decimal.Decimal
}

type PaymentsConfig struct {
	// Mock registers deterministic mock gateways under the real provider
	// names instead of calling Stripe or Mercado Pago.
	Mock            bool
	ProviderTimeout time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
}

type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

// EventsConfig selects the domain event sinks. Every configured sink
// receives every event; with none configured events are only logged.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	NATSURL      string
	NATSPrefix   string
}

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		dir, _ := os.Getwd()
		found := false
		for range 2 {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	cfg := &Config{
		Env:         getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvInt("PORT", 3000),
		DatabaseUrl: getEnv("DATABASE_URL", ""),
		Business: BusinessConfig{
			Currency: strings.ToLower(getEnv("CURRENCY", "usd")),
		},
		Payments: PaymentsConfig{
			Mock:            getEnvBool("PAYMENT_GATEWAY_MOCK", false),
			ProviderTimeout: getEnvDuration("PAYMENT_PROVIDER_TIMEOUT", 15*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		MP: MercadoPagoConfig{
			AccessToken:   getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
			WebhookSecret: getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: getEnvDuration("CART_CACHE_TTL", 10*time.Minute),
		},
		Events: EventsConfig{
			KafkaBrokers: getEnvList("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "motorworks.events"),
			NATSURL:      getEnv("NATS_URL", ""),
			NATSPrefix:   getEnv("NATS_SUBJECT_PREFIX", "motorworks"),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			Enabled:          getEnvBool("SENTRY_ENABLED", false), // Disabled by default for development
			Environment:      getEnv("SENTRY_ENVIRONMENT", "development"),
			Release:          getEnv("SENTRY_RELEASE", ""),
			SampleRate:       getEnvFloat("SENTRY_SAMPLE_RATE", 1.0),
			TracesSampleRate: getEnvFloat("SENTRY_TRACES_SAMPLE_RATE", 0.0), // Disabled by default
			Debug:            getEnvBool("SENTRY_DEBUG", false),
		},
		CartSweepInterval: getEnvDuration("CART_SWEEP_INTERVAL", time.Hour),
		CORSOrigins:       getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	tz := getEnv("BUSINESS_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE %q: %w", tz, err)
	}
	cfg.Business.Timezone = loc

	rate, err := decimal.NewFromString(getEnv("DEFAULT_TAX_RATE", "0"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TAX_RATE: %w", err)
	}
	cfg.Business.DefaultTaxRate = rate

	if cfg.Env == "prod" {
		if cfg.DatabaseUrl == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set in production environment")
		}
		if cfg.Payments.Mock {
			return nil, fmt.Errorf("PAYMENT_GATEWAY_MOCK must not be enabled in production environment")
		}
	}
	if !cfg.Payments.Mock && cfg.Stripe.SecretKey == "" && cfg.MP.AccessToken == "" {
		slog.Default().Warn("No payment provider configured; payment routes will reject every provider")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%f", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		slog.Default().Warn("Invalid duration. Using default", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
