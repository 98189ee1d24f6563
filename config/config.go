package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	PORT    string
	APP_ENV string

	DB_URL             string
	DB_SKIP_MIGRATIONS bool
	JWT_SECRET         string
	CORS_ORIGIN        string
	LOG_LEVEL          string

	PAYMENT_PROVIDER               string
	STRIPE_SECRET_KEY              string
	STRIPE_WEBHOOK_SECRET          string
	PAYMENT_WEBHOOK_SECRET         string
	PAYMENT_WEBHOOK_ALLOW_UNSIGNED bool
	PAYMENT_RETURN_URL             string

	CURRENCY            string
	SHIPPING_COST_CENTS int64

	NOTIFY_BACKEND string
	KAFKA_BROKERS  []string
	REDIS_ADDR     string
	REDIS_PASSWORD string
	REDIS_DB       int
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}
	if err := Parse(); err != nil {
		log.Fatal(err)
	}
}

// Parse reads every setting from the environment and validates the
// combination.
func Parse() error {
	PORT = getEnv("PORT", "8080")
	APP_ENV = getEnv("APP_ENV", "development")
	JWT_SECRET = getEnv("JWT_SECRET", "")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", "http://localhost:5173")
	LOG_LEVEL = getEnv("LOG_LEVEL", "info")

	DB_URL = getEnv("DB_URL", "")
	PAYMENT_PROVIDER = strings.ToLower(getEnv("PAYMENT_PROVIDER", "mock"))
	STRIPE_SECRET_KEY = getEnv("STRIPE_SECRET_KEY", "")
	STRIPE_WEBHOOK_SECRET = getEnv("STRIPE_WEBHOOK_SECRET", "")
	PAYMENT_WEBHOOK_SECRET = getEnv("PAYMENT_WEBHOOK_SECRET", "")
	PAYMENT_RETURN_URL = getEnv("PAYMENT_RETURN_URL", "")
	CURRENCY = strings.ToUpper(getEnv("CURRENCY", "TRY"))
	NOTIFY_BACKEND = strings.ToLower(getEnv("NOTIFY_BACKEND", "log"))
	KAFKA_BROKERS = splitList(getEnv("KAFKA_BROKERS", ""))
	REDIS_ADDR = getEnv("REDIS_ADDR", "localhost:6379")
	REDIS_PASSWORD = getEnv("REDIS_PASSWORD", "")

	var err error
	if DB_SKIP_MIGRATIONS, err = boolEnv("DB_SKIP_MIGRATIONS", false); err != nil {
		return err
	}
	if PAYMENT_WEBHOOK_ALLOW_UNSIGNED, err = boolEnv("PAYMENT_WEBHOOK_ALLOW_UNSIGNED", false); err != nil {
		return err
	}
	if SHIPPING_COST_CENTS, err = int64Env("SHIPPING_COST_CENTS", 3000); err != nil {
		return err
	}
	redisDB, err := int64Env("REDIS_DB", 0)
	if err != nil {
		return err
	}
	REDIS_DB = int(redisDB)

	return validate()
}

func validate() error {
	if JWT_SECRET == "" {
		return fmt.Errorf("missing required environment variable: JWT_SECRET")
	}
	if IsProduction() && DB_URL == "" {
		return fmt.Errorf("missing required environment variable: DB_URL")
	}
	if SHIPPING_COST_CENTS < 0 {
		return fmt.Errorf("SHIPPING_COST_CENTS must not be negative")
	}

	switch PAYMENT_PROVIDER {
	case "mock":
		if IsProduction() {
			return fmt.Errorf("the mock payment provider cannot run in production")
		}
	case "stripe":
		if STRIPE_SECRET_KEY == "" {
			return fmt.Errorf("missing required environment variable: STRIPE_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", PAYMENT_PROVIDER)
	}
	if PAYMENT_WEBHOOK_SECRET == "" && !AllowUnsignedWebhooks() {
		return fmt.Errorf("missing required environment variable: PAYMENT_WEBHOOK_SECRET")
	}

	switch NOTIFY_BACKEND {
	case "log", "redis":
	case "kafka":
		if len(KAFKA_BROKERS) == 0 {
			return fmt.Errorf("missing required environment variable: KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_BACKEND %q", NOTIFY_BACKEND)
	}
	return nil
}

func IsProduction() bool { return APP_ENV == "production" }

// AllowUnsignedWebhooks is only ever true for the mock provider outside
// production.
func AllowUnsignedWebhooks() bool {
	return PAYMENT_WEBHOOK_ALLOW_UNSIGNED && PAYMENT_PROVIDER == "mock" && !IsProduction()
}

func LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(LOG_LEVEL)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func boolEnv(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
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
