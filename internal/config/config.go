package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// WhatsApp Cloud API
	WhatsAppAPIBaseURL    string
	WhatsAppPhoneNumberID string
	WhatsAppAPIKey        string
	WhatsAppBusinessID    string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppTimeout       time.Duration

	// Matching
	SimilarityStrategy string
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingTimeout   time.Duration
	OpenAIAPIKey       string
	GeminiAPIKey       string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	LockTTL          time.Duration
	LockWait         time.Duration
	WebhookTimeout   time.Duration
	WebhookRateLimit float64
	WebhookRateBurst int
	DedupeTTL        time.Duration

	AdminJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppAPIBaseURL:    strings.TrimRight(getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v22.0"), "/"),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIKey:        getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppBusinessID:    getEnv("WHATSAPP_BUSINESS_ID", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppTimeout:       getEnvAsDuration("WHATSAPP_TIMEOUT", 10*time.Second),

		SimilarityStrategy: strings.ToLower(strings.TrimSpace(getEnv("SIMILARITY_STRATEGY", ""))),
		EmbeddingProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMBEDDING_PROVIDER", ""))),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", ""),
		EmbeddingTimeout:   getEnvAsDuration("EMBEDDING_TIMEOUT", 8*time.Second),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LockTTL:          getEnvAsDuration("LOCK_TTL", 30*time.Second),
		LockWait:         getEnvAsDuration("LOCK_WAIT", 10*time.Second),
		WebhookTimeout:   getEnvAsDuration("WEBHOOK_TIMEOUT", 25*time.Second),
		WebhookRateLimit: getEnvAsFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookRateBurst: getEnvAsInt("WEBHOOK_RATE_BURST", 40),
		DedupeTTL:        getEnvAsDuration("DEDUPE_TTL", 24*time.Hour),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
	if cfg.SimilarityStrategy == "" {
		if cfg.EmbeddingProvider != "" {
			cfg.SimilarityStrategy = "embedding"
		} else {
			cfg.SimilarityStrategy = "lexical"
		}
	}
	return cfg
}

// UseEmbeddings reports whether scripts are matched by vector similarity.
func (c *Config) UseEmbeddings() bool {
	return c != nil && c.SimilarityStrategy == "embedding" && c.EmbeddingProvider != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
