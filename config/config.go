package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var DB *gorm.DB

// App holds the loaded configuration for the running process
var App *Config

// Config holds all configuration for the application
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string

	// Sandbox short-circuits payment providers so the purchase flow works
	// without merchant credentials. Forced on per provider when that
	// provider's credentials are missing.
	Sandbox bool

	FrontendURL string

	EasypaisaStoreID string
	EasypaisaHashKey string
	EasypaisaAPIURL  string

	JazzCashMerchantID string
	JazzCashPassword   string
	JazzCashHashKey    string
	JazzCashAPIURL     string

	RazorpayKey    string
	RazorpaySecret string

	// IdempotencyRetention is how long processed webhook keys are kept
	// before the sweep purges them.
	IdempotencyRetention time.Duration

	// StalePurchaseAge is how old a pending purchase must be before the
	// admin sweep marks it failed.
	StalePurchaseAge time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		return nil, fmt.Errorf("error loading .env file: %v", err)
	}

	config := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Port:       os.Getenv("PORT"),
		Env:        os.Getenv("ENV"),

		Sandbox:     os.Getenv("PAYMENTS_SANDBOX") == "true" || os.Getenv("ENV") != "production",
		FrontendURL: os.Getenv("FRONTEND_URL"),

		EasypaisaStoreID: os.Getenv("EASYPAISA_STORE_ID"),
		EasypaisaHashKey: os.Getenv("EASYPAISA_HASH_KEY"),
		EasypaisaAPIURL:  os.Getenv("EASYPAISA_API_URL"),

		JazzCashMerchantID: os.Getenv("JAZZCASH_MERCHANT_ID"),
		JazzCashPassword:   os.Getenv("JAZZCASH_PASSWORD"),
		JazzCashHashKey:    os.Getenv("JAZZCASH_HASH_KEY"),
		JazzCashAPIURL:     os.Getenv("JAZZCASH_API_URL"),

		RazorpayKey:    os.Getenv("RAZORPAY_KEY"),
		RazorpaySecret: os.Getenv("RAZORPAY_SECRET"),

		IdempotencyRetention: durationEnv("IDEMPOTENCY_RETENTION_HOURS", 72) * time.Hour,
		StalePurchaseAge:     durationEnv("STALE_PURCHASE_MINUTES", 60) * time.Minute,
	}

	App = config
	return config, nil
}

func durationEnv(key string, fallback int) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(fallback)
}
