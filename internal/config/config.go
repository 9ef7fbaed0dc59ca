// Package config provides environment configuration for the mediation service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfig marks operator errors that must stop the process.
var ErrMissingConfig = errors.New("missing configuration")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSAllowedOrigins []string

	// Storage
	DatabaseURL string
	RedisURL    string

	// NATS settings (realtime notifications, optional)
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// LLM settings
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	Model           string
	MaxTokens       int
	Temperature     float64

	// Mediation
	MediationTimeout time.Duration
	HistoryLimit     int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),

		// Storage
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// LLM
		LLMProvider:     getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		Model:           getEnv("MEDIATOR_MODEL", ""),
		MaxTokens:       getIntEnv("MEDIATOR_MAX_TOKENS", 900),
		Temperature:     getFloatEnv("MEDIATOR_TEMPERATURE", 0.25),

		// Mediation
		MediationTimeout: getDurationEnv("MEDIATION_TIMEOUT", 35*time.Second),
		HistoryLimit:     getIntEnv("MEDIATION_HISTORY_LIMIT", 20),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// ProviderAPIKey returns the API key for the configured LLM provider.
func (c *Config) ProviderAPIKey() string {
	if strings.EqualFold(c.LLMProvider, "anthropic") {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// Validate reports missing settings the server cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch strings.ToLower(c.LLMProvider) {
	case "openai":
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	default:
		return fmt.Errorf("%w: unknown LLM_PROVIDER %q", ErrMissingConfig, c.LLMProvider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	if c.MediationTimeout <= 0 {
		return fmt.Errorf("%w: MEDIATION_TIMEOUT must be positive", ErrMissingConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, entry := range strings.Split(value, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
