package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	StoragePath    string
	StorageBaseURL string
	GeoIPDBPath    string
	GoogleClientID string
	GoogleIssuer   string
	DefaultLocale  string

	// Generation provider surfaces. API keys may be left empty and supplied
	// through the integration_tokens table instead.
	ImageAPIBaseURL  string
	ImageAPIKey      string
	VideoAPIBaseURL  string
	VideoAPIKey      string
	SpeechAPIBaseURL string
	SpeechAPIKey     string
	TextAPIBaseURL   string
	TextAPIKey       string

	DefaultImageProvider string
	DefaultVideoProvider string
	SpeechVoiceDefault   string

	// BillingWebhookSecret authenticates payment provider callbacks. Falls
	// back to the JWT secret so a single-secret deployment still works.
	BillingWebhookSecret string

	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		GoogleClientID:   os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleIssuer:     getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		ImageAPIBaseURL:  getEnv("IMAGE_API_BASE_URL", "https://api.imagegen.example.com/v1"),
		ImageAPIKey:      os.Getenv("IMAGE_API_KEY"),
		VideoAPIBaseURL:  getEnv("VIDEO_API_BASE_URL", "https://api.videogen.example.com/v1"),
		VideoAPIKey:      os.Getenv("VIDEO_API_KEY"),
		SpeechAPIBaseURL: getEnv("SPEECH_API_BASE_URL", "https://api.speechgen.example.com/v1"),
		SpeechAPIKey:     os.Getenv("SPEECH_API_KEY"),
		TextAPIBaseURL:   getEnv("TEXT_API_BASE_URL", "https://api.textgen.example.com/v1"),
		TextAPIKey:       os.Getenv("TEXT_API_KEY"),

		DefaultImageProvider: getEnv("DEFAULT_IMAGE_PROVIDER", "pixelforge"),
		DefaultVideoProvider: getEnv("DEFAULT_VIDEO_PROVIDER", "motionloom"),
		SpeechVoiceDefault:   getEnv("SPEECH_DEFAULT_VOICE", "nova"),

		CORSOrigins:      splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.BillingWebhookSecret = getEnv("BILLING_WEBHOOK_SECRET", cfg.JWTSecret)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
