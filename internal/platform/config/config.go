package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	// CommissionRate is the platform's cut of every settled payout.
	CommissionRate float64
	// TokenExpiryDays is the default lifetime of a purchased token batch.
	TokenExpiryDays int
	// EarningHoldDays is how long a creator earning stays pending.
	EarningHoldDays int
	// ExpiringWindowDays is the default lookahead of the expiring-tokens view.
	ExpiringWindowDays int
	// IdempotencyTTLHours bounds how long replay records are honored.
	IdempotencyTTLHours int
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "revuhub"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		CommissionRate:      envFloat("COMMISSION_RATE", 0.20),
		TokenExpiryDays:     envInt("TOKEN_EXPIRY_DAYS", 90),
		EarningHoldDays:     envInt("EARNING_HOLD_DAYS", 7),
		ExpiringWindowDays:  envInt("EXPIRING_WINDOW_DAYS", 30),
		IdempotencyTTLHours: envInt("IDEMPOTENCY_TTL_HOURS", 168),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 || value >= 1 {
		return fallback
	}
	return value
}
