package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Clinician directory (Postgres).
	DatabaseURL string

	// Session + vector store (Redis).
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Conversation state.
	SessionTTL      time.Duration
	PageSize        int
	HistoryLimit    int
	DefaultTenantID string

	// Completion + embedding service.
	LLMProvider     string // "openai" or "bedrock"
	OpenAIAPIKey    string
	ChatModel       string
	EmbedModel      string
	EmbedDimensions int
	LLMTimeout      time.Duration

	// Bedrock (optional alternate completion provider).
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string

	// Vector index.
	RAGIndexName string
	RAGKeyPrefix string
	RAGTopK      int
	RAGTimeout   time.Duration

	// HTTP surface.
	CORSAllowedOrigins []string
	AdminAuthSecret    string
	ChatRatePerSecond  float64
	ChatRateBurst      int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionTTL:      getEnvAsDuration("CHAT_CTX_TTL", 48*time.Hour),
		PageSize:        getEnvAsInt("CHAT_PAGE_SIZE", 6),
		HistoryLimit:    getEnvAsInt("CHAT_HISTORY_LIMIT", 60),
		DefaultTenantID: getEnv("TENANT_ID", "default"),

		LLMProvider:     strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		ChatModel:       getEnv("AI_CHAT_MODEL", "gpt-4o-mini"),
		EmbedModel:      getEnv("AI_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDimensions: getEnvAsInt("AI_EMBED_DIM", 1536),
		LLMTimeout:      getEnvAsDuration("LLM_TIMEOUT", 12*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),

		RAGIndexName: getEnv("RAG_INDEX", "idx:rag:cards"),
		RAGKeyPrefix: getEnv("RAG_PREFIX", "triage:card:"),
		RAGTopK:      getEnvAsInt("RAG_TOP_K", 5),
		RAGTimeout:   getEnvAsDuration("RAG_TIMEOUT", 6*time.Second),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
		AdminAuthSecret:    getEnv("ADMIN_AUTH_SECRET", ""),
		ChatRatePerSecond:  getEnvAsFloat("CHAT_RATE_PER_SEC", 0),
		ChatRateBurst:      getEnvAsInt("CHAT_RATE_BURST", 5),
	}
}

// getEnvAsSlice splits a comma-separated environment variable.
func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
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
