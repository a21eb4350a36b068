package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds service configuration loaded from the environment
type Config struct {
	Port        string
	Environment string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL string
	NATSURL  string

	NotificationServiceURL string

	GatewayBaseURL     string
	GatewayAccessToken string

	// Commission rates in basis points, per source type
	BookingCommissionBps     int
	ContractCommissionBps    int
	MarketplaceCommissionBps int

	SweepInterval time.Duration
	SweepCutoff   time.Duration

	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "settlement"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", ""),
		NATSURL:  getEnv("NATS_URL", ""),

		NotificationServiceURL: getEnv("NOTIFICATION_SERVICE_URL", ""),

		GatewayBaseURL:     getEnv("GATEWAY_BASE_URL", "https://api.processor.example"),
		GatewayAccessToken: getEnv("GATEWAY_ACCESS_TOKEN", ""),

		BookingCommissionBps:     getEnvInt("BOOKING_COMMISSION_BPS", 500),
		ContractCommissionBps:    getEnvInt("CONTRACT_COMMISSION_BPS", 500),
		MarketplaceCommissionBps: getEnvInt("MARKETPLACE_COMMISSION_BPS", 800),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 1*time.Minute),
		SweepCutoff:   getEnvDuration("SWEEP_CUTOFF", 5*time.Minute),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// DatabaseDSN builds the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
