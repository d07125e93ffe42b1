package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Lead store persistence
	LeadStoreBackend string
	LeadsKey         string
	DatabaseURL      string
	LeadsDynamoTable string
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Dialogue capability
	DialogueProvider         string
	DialogueFallbackProvider string
	DialogueTimeout          time.Duration
	GeminiAPIKey             string
	GeminiModel              string
	OpenAIAPIKey             string
	OpenAIModel              string
	BedrockModelID           string
	SessionTTL               time.Duration

	// Notifications
	NotifyProvider    string
	NotifyRecipient   string
	NotifyTimeout     time.Duration
	NotifyQueueURL    string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	// Admin gate
	AdminPassword  string
	AdminJWTSecret string
	AdminTokenTTL  time.Duration

	// HTTP surface
	BookingSubmitDelay time.Duration
	CORSAllowedOrigins []string
	ChatRateLimit      float64
	ChatRateBurst      int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LeadStoreBackend: strings.ToLower(strings.TrimSpace(getEnv("LEAD_STORE_BACKEND", "memory"))),
		LeadsKey:         getEnv("LEADS_KEY", "crystalcare_leads"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		LeadsDynamoTable: getEnv("LEADS_DYNAMO_TABLE", "crystalcare_kv"),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		DialogueProvider:         strings.ToLower(strings.TrimSpace(getEnv("DIALOGUE_PROVIDER", "gemini"))),
		DialogueFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("DIALOGUE_FALLBACK_PROVIDER", ""))),
		DialogueTimeout:          getEnvAsDuration("DIALOGUE_TIMEOUT", 30*time.Second),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:              getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BedrockModelID:           getEnv("BEDROCK_MODEL_ID", ""),
		SessionTTL:               getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		NotifyProvider:    strings.ToLower(strings.TrimSpace(getEnv("NOTIFY_PROVIDER", "stub"))),
		NotifyRecipient:   getEnv("NOTIFY_RECIPIENT", "appointments@crystalcare.example"),
		NotifyTimeout:     getEnvAsDuration("NOTIFY_TIMEOUT", 15*time.Second),
		NotifyQueueURL:    getEnv("NOTIFY_QUEUE_URL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CrystalCare Medical"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AdminPassword:  getEnv("ADMIN_PASSWORD", "1234ABCD"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminTokenTTL:  getEnvAsDuration("ADMIN_TOKEN_TTL", 8*time.Hour),

		BookingSubmitDelay: getEnvAsDuration("BOOKING_SUBMIT_DELAY", 1500*time.Millisecond),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ChatRateLimit:      getEnvAsFloat("CHAT_RATE_LIMIT", 1),
		ChatRateBurst:      getEnvAsInt("CHAT_RATE_BURST", 5),
	}
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

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
