package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the scan analysis service.
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// LLM configuration
	LLMProvider  string // "gemini", "openai" or "stub"
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// Scan configuration
	AnalysisTimeout time.Duration
	FreeScans       int

	// DemoFallback controls the degrade-gracefully policy: when enabled,
	// remote analysis failures substitute the fixed simulation result and
	// payment failures simulate success instead of surfacing errors.
	DemoFallback          bool
	PaymentURL            string
	SimulatedPaymentDelay time.Duration

	// Auth configuration
	JWTSecret   string
	TokenExpiry time.Duration

	// Rate limiting
	RateLimitPerMinute int

	// RabbitMQ configuration (optional; empty URL disables publishing)
	AMQPURL            string
	AMQPExchange       string
	AMQPScanRoutingKey string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is picked up when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "purescan"),

		LLMProvider:  getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		AnalysisTimeout: getDurationEnv("ANALYSIS_TIMEOUT", 60*time.Second),
		FreeScans:       getIntEnv("FREE_SCANS", 3),

		DemoFallback:          getBoolEnv("DEMO_FALLBACK", true),
		PaymentURL:            getEnv("PAYMENT_URL", ""),
		SimulatedPaymentDelay: getDurationEnv("SIMULATED_PAYMENT_DELAY", 2*time.Second),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenExpiry: getDurationEnv("TOKEN_EXPIRY", 24*time.Hour),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),

		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "purescan"),
		AMQPScanRoutingKey: getEnv("AMQP_SCAN_ROUTING_KEY", "scan.completed"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
