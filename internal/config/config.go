package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the application settings.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	HTTPAddr string

	JWTSecret   string
	TokenExpiry time.Duration

	PGPKeyPath string
	HMACSecret string

	// Cron expression for the nightly fine accrual run.
	FineAccrualSchedule string
}

// LoadConfig reads configuration from the environment, with a .env file as a
// convenience for development.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found")
	}

	expiry, err := time.ParseDuration(os.Getenv("TOKEN_EXPIRY"))
	if err != nil {
		expiry = 24 * time.Hour
	}

	config := &Config{
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "emi_portal"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:           getEnv("JWT_SECRET", "default-secret-key"),
		TokenExpiry:         expiry,
		PGPKeyPath:          getEnv("PGP_KEY_PATH", "config/pgp-key.asc"),
		HMACSecret:          os.Getenv("HMAC_SECRET"),
		FineAccrualSchedule: getEnv("FINE_ACCRUAL_SCHEDULE", "0 1 * * *"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
