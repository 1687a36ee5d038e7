package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	Env              string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey  string
	StripeWebhookKey string
	MomoWebhookKey   string // HMAC secret for the mobile-money gateway

	JWTSecret string

	Currency               string
	DefaultCommissionBps   int   // platform commission when the vendor has no rate
	OrderCeiling           int64 // max order total, minor units
	TransferCeiling        int64
	MinWithdrawal          int64
	WebhookFreshnessWindow time.Duration
	WebhookProcessTimeout  time.Duration

	RedisURL           string // optional catalog cache
	KafkaBrokers       string // optional event stream
	KafkaPaymentTopic  string
	PaymentSNSTopicARN string // optional SNS fan-out
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8087"),
		Env:              getEnv("APP_ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Nairobi"),

		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		MomoWebhookKey:   os.Getenv("MOMO_WEBHOOK_SECRET"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		Currency:               getEnv("CURRENCY", "kes"),
		DefaultCommissionBps:   getEnvInt("DEFAULT_COMMISSION_BPS", 1500),
		OrderCeiling:           getEnvInt64("ORDER_CEILING", 10_000_000),
		TransferCeiling:        getEnvInt64("TRANSFER_CEILING", 1_000_000),
		MinWithdrawal:          getEnvInt64("MIN_WITHDRAWAL", 1000),
		WebhookFreshnessWindow: getEnvDuration("WEBHOOK_FRESHNESS_WINDOW", 5*time.Minute),
		WebhookProcessTimeout:  getEnvDuration("WEBHOOK_PROCESS_TIMEOUT", 20*time.Second),

		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		KafkaPaymentTopic:  getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),
		PaymentSNSTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("missing required postgres environment variables")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required JWT_SECRET")
	}
	if cfg.StripeWebhookKey == "" || cfg.MomoWebhookKey == "" {
		return nil, fmt.Errorf("missing required webhook secrets")
	}
	if cfg.DefaultCommissionBps < 0 || cfg.DefaultCommissionBps > 10000 {
		return nil, fmt.Errorf("DEFAULT_COMMISSION_BPS must be within [0,10000]")
	}

	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
