package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the platform.
type Config struct {
	Port string

	// Database
	DBPath string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Bootstrap admin, created at startup when both are set.
	AdminEmail    string
	AdminPassword string

	// Storage
	UploadDir      string
	MaxUploadBytes int64
	BotCatalogPath string

	// Email delivery; empty host logs instead of sending.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Optional NSQ fan-out of notifications.
	NSQAddr  string
	NSQTopic string

	NotifyQueueSize int

	// HTTP protection
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "console"

	// Localization
	Language string // "en" or "zh"
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "./data/investment.db"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		TokenTTL:        time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24*30)) * time.Hour,
		AdminEmail:      strings.ToLower(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		UploadDir:       getEnv("UPLOAD_DIR", "./data/uploads"),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		BotCatalogPath:  getEnv("BOT_CATALOG_PATH", "./bots.yaml"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPUsername:    os.Getenv("SMTP_USERNAME"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:        getEnv("SMTP_FROM", "no-reply@localhost"),
		NSQAddr:         os.Getenv("NSQ_ADDR"),
		NSQTopic:        getEnv("NSQ_TOPIC", "notifications"),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 1024),
		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 50),
		CORSOrigins:     splitAndTrim(getEnv("CORS_ORIGINS", "*")),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
		Language:        getEnv("LANGUAGE", "en"),
	}

	if cfg.TokenTTL <= 0 {
		return nil, errors.New("TOKEN_TTL_HOURS must be positive")
	}
	if cfg.NotifyQueueSize <= 0 {
		return nil, errors.New("NOTIFY_QUEUE_SIZE must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
