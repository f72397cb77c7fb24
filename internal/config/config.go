package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM provider
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
	MaxRetries      int
	Temperature     float64
	MaxOutputTokens int

	// Chunking
	MaxTokensPerChunk int
	InitialCharWindow int
	OverlapChars      int
	MinChunkChars     int

	// Blob storage
	BlobRoot string

	// Pricing overlay (optional YAML file, see pricing.go)
	PricingFile string

	// SMTP notification (LogNotifier is used when Host is empty)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Server
	ListenAddr string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "packlens"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "main"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("PACKLENS_LLM_PROVIDER", "openai"),
		LLMModel:        getEnv("PACKLENS_LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		MaxRetries:      getEnvInt("PACKLENS_MAX_RETRIES", 3),
		Temperature:     getEnvFloat("PACKLENS_TEMPERATURE", 0.3),
		MaxOutputTokens: getEnvInt("PACKLENS_MAX_OUTPUT_TOKENS", 2048),

		MaxTokensPerChunk: getEnvInt("PACKLENS_MAX_TOKENS_PER_CHUNK", 6000),
		InitialCharWindow: getEnvInt("PACKLENS_INITIAL_CHAR_WINDOW", 24000),
		OverlapChars:      getEnvInt("PACKLENS_OVERLAP_CHARS", 400),
		MinChunkChars:     getEnvInt("PACKLENS_MIN_CHUNK_CHARS", 1000),

		BlobRoot:    getEnv("PACKLENS_BLOB_ROOT", "/var/lib/packlens/blobs"),
		PricingFile: getEnv("PACKLENS_PRICING_FILE", ""),

		SMTPHost:     getEnv("PACKLENS_SMTP_HOST", ""),
		SMTPPort:     getEnvInt("PACKLENS_SMTP_PORT", 587),
		SMTPUsername: getEnv("PACKLENS_SMTP_USERNAME", ""),
		SMTPPassword: getEnv("PACKLENS_SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("PACKLENS_SMTP_FROM", "noreply@packlens.dev"),

		ListenAddr: getEnv("PACKLENS_LISTEN_ADDR", ":8585"),

		LogFile:  getEnv("PACKLENS_LOG_FILE", "/tmp/packlens.log"),
		LogLevel: parseLogLevel(getEnv("PACKLENS_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
