// Package config loads runtime configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider identifiers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
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

	// Extraction model
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// HTTP server and client
	ServerPort    string
	ServerURL     string
	ClientTimeout time.Duration

	// Reconciliation
	MaxTextLength     int
	LayoutDebounce    time.Duration
	ImportConcurrency int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "circles"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "people"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     strings.ToLower(getEnv("CIRCLES_LLM_PROVIDER", ProviderOllama)),
		LLMModel:        getEnv("CIRCLES_LLM_MODEL", "qwen2.5:7b"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		ServerPort:    getEnv("CIRCLES_SERVER_PORT", "8484"),
		ServerURL:     getEnv("CIRCLES_SERVER_URL", "http://localhost:8484"),
		ClientTimeout: getDuration("CIRCLES_CLIENT_TIMEOUT", 2*time.Minute),

		MaxTextLength:     getInt("CIRCLES_MAX_TEXT", 2000),
		LayoutDebounce:    getDuration("CIRCLES_LAYOUT_DEBOUNCE", time.Second),
		ImportConcurrency: getInt("CIRCLES_IMPORT_CONCURRENCY", 2),

		LogFile:  getEnv("CIRCLES_LOG_FILE", "/tmp/circles.log"),
		LogLevel: parseLogLevel(getEnv("CIRCLES_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
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
