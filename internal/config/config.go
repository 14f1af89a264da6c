// Package config provides environment configuration for the API server and CLI.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        []string

	// Storage
	DatabaseURL string
	RedisURL    string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// LLM settings
	LLMProvider     string
	LLMModel        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	LLMBaseURL      string
	LLMMaxRetries   int

	// Embeddings
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingModel   string

	Routing RoutingConfig
	Session SessionConfig
	Synth   SynthConfig

	RewriterRulesFile string
	FAQSeedFile       string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// RoutingConfig holds the similarity thresholds used by the routing engine.
type RoutingConfig struct {
	DirectThreshold  float64
	SynthThreshold   float64
	ContextThreshold float64
	SearchLimit      int
	HistoryWindow    int
}

// SessionConfig bounds conversation history.
type SessionConfig struct {
	MaxMessages   int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// SynthConfig configures the synthesizer guard.
type SynthConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	DailyCap         int
	Timeout          time.Duration
	RatePerMinute    int
	MaxQueryChars    int
	MaxContextChars  int
	MaxOutputChars   int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment values win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		CORSOrigins:        getListEnv("CORS_ORIGINS", []string{"*"}),

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
		JWTSecret:   getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		// LLM
		LLMProvider:     getEnv("LLM_PROVIDER", "anthropic"),
		LLMModel:        getEnv("LLM_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		LLMBaseURL:      getEnv("LLM_BASE_URL", ""),
		LLMMaxRetries:   getIntEnv("LLM_MAX_RETRIES", 1),

		// Embeddings
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY")),
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		Routing: RoutingConfig{
			DirectThreshold:  getFloatEnv("ROUTE_DIRECT_THRESHOLD", 0.8),
			SynthThreshold:   getFloatEnv("ROUTE_SYNTH_THRESHOLD", 0.5),
			ContextThreshold: getFloatEnv("ROUTE_CONTEXT_THRESHOLD", 0.4),
			SearchLimit:      getIntEnv("SEARCH_LIMIT", 3),
			HistoryWindow:    getIntEnv("HISTORY_WINDOW", 4),
		},
		Session: SessionConfig{
			MaxMessages:   getIntEnv("SESSION_MAX_MESSAGES", 10),
			IdleTimeout:   getDurationEnv("SESSION_IDLE_TIMEOUT", 60*time.Minute),
			SweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", 30*time.Minute),
		},
		Synth: SynthConfig{
			FailureThreshold: getIntEnv("SYNTH_FAILURE_THRESHOLD", 5),
			Cooldown:         getDurationEnv("SYNTH_COOLDOWN", 5*time.Minute),
			DailyCap:         getIntEnv("SYNTH_DAILY_CAP", 500),
			Timeout:          getDurationEnv("SYNTH_TIMEOUT", 30*time.Second),
			RatePerMinute:    getIntEnv("SYNTH_RATE_PER_MINUTE", 60),
			MaxQueryChars:    getIntEnv("SYNTH_MAX_QUERY_CHARS", 500),
			MaxContextChars:  getIntEnv("SYNTH_MAX_CONTEXT_CHARS", 4000),
			MaxOutputChars:   getIntEnv("SYNTH_MAX_OUTPUT_CHARS", 2000),
		},

		RewriterRulesFile: getEnv("REWRITER_RULES_FILE", ""),
		FAQSeedFile:       getEnv("FAQ_SEED_FILE", "data/faqs.yaml"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
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
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
