package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	BaseURL     string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PaymentChannel     string
	DeliveryChannel    string

	// Checkout configuration
	MaxTicketsPerOrder int
	Currency           string
	IdempotencyGuard   time.Duration

	// Validation configuration
	RequireDeviceAuth bool
	ScanRateLimit     int
	ScanRateWindow    time.Duration

	// Expiry configuration
	TicketTTL     time.Duration
	SweepInterval time.Duration

	// Webhook configuration
	WebhookHMACKey string

	// Monitoring
	EnableMetrics  bool
	MetricsPort    string
	SampleInterval time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8090"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PaymentChannel:     getEnv("PAYMENT_CHANNEL", "payment-notifications"),
		DeliveryChannel:    getEnv("DELIVERY_CHANNEL", "ticket-delivery"),

		// Checkout
		MaxTicketsPerOrder: getEnvAsInt("MAX_TICKETS_PER_ORDER", 20),
		Currency:           getEnv("CURRENCY", "ARS"),
		IdempotencyGuard:   getEnvAsDuration("IDEMPOTENCY_GUARD", "30s"),

		// Validation
		RequireDeviceAuth: getEnvAsBool("REQUIRE_DEVICE_AUTH", false),
		ScanRateLimit:     getEnvAsInt("SCAN_RATE_LIMIT", 30),
		ScanRateWindow:    getEnvAsDuration("SCAN_RATE_WINDOW", "1m"),

		// Expiry: zero disables the valid -> expired sweep
		TicketTTL:     getEnvAsDuration("TICKET_TTL", "0s"),
		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", "10m"),

		// Webhook
		WebhookHMACKey: getEnv("WEBHOOK_HMAC_KEY", ""),

		// Monitoring
		EnableMetrics:  getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		SampleInterval: getEnvAsDuration("SAMPLE_INTERVAL", "30s"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
