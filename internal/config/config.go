package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	MaxOpenConns int
	MaxIdleConns int
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
	JWTSecret    string
	LogLevel     string
	OTLPEndpoint string

	Ercaspay Ercaspay
	TopUp    TopUp
}

type Ercaspay struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type TopUp struct {
	RedirectURL string
	MaxAmount   int64 // kobo
}

// Load reads .env when present and falls back to defaults for anything
// left unset. The returned error only reports a missing or unreadable .env
// file; the config is usable either way. Callers log it once logging is up.
func Load() (*Config, error) {
	envErr := godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:  getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=legitstore sslmode=disable"),
		MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKER", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC_PAYMENTS", "payments"),
		JWTSecret:    getEnv("JWT_SECRET", "supersecret"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Ercaspay: Ercaspay{
			BaseURL:   getEnv("ERCASPAY_BASE_URL", "https://api.ercaspay.com"),
			SecretKey: os.Getenv("ERCASPAY_SECRET_KEY"),
			Timeout:   getDuration("ERCASPAY_TIMEOUT", 15*time.Second),
		},
		TopUp: TopUp{
			RedirectURL: getEnv("PAYMENT_REDIRECT_URL", "http://localhost:5173/payment/callback"),
			MaxAmount:   int64(getInt("TOPUP_MAX_KOBO", 100_000_000)),
		},
	}

	return cfg, envErr
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
