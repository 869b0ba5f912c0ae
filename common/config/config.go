package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Database configuration
	DBDriver   string
	DBServer   string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	SQLitePath string

	// Redis configuration. Empty RedisURL disables the task queue and the
	// rate limiter.
	RedisURL string

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Pricing
	ServiceFeeRate decimal.Decimal
	ProcessingFee  decimal.Decimal

	// Purchases per client IP per minute
	PurchaseRateLimit int

	QRSize int

	// Monitoring
	EnableMetrics bool
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBServer:   getEnv("DB_SERVER", "127.0.0.1"),
		DBPort:     getEnvAsInt("DB_PORT", 3306),
		DBName:     getEnv("DB_NAME", "ticketbooth"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		SQLitePath: getEnv("SQLITE_PATH", "ticketbooth.db"),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", "ticketbooth-dev-secret-change-me"),
		JWTTTL:    getEnvAsDuration("JWT_TTL", "12h"),

		// SMTP
		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "tickets@ticketbooth.local"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Ticketbooth"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Pricing
		ServiceFeeRate: getEnvAsDecimal("SERVICE_FEE_RATE", "0.05"),
		ProcessingFee:  getEnvAsDecimal("PROCESSING_FEE", "2.99"),

		PurchaseRateLimit: getEnvAsInt("PURCHASE_RATE_LIMIT", 10),
		QRSize:            getEnvAsInt("QR_SIZE", 300),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

// IsProduction reports whether ENVIRONMENT is "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
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
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	if value, err := decimal.NewFromString(getEnv(key, defaultValue)); err == nil {
		return value
	}
	return decimal.RequireFromString(defaultValue)
}
