package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Loader  LoaderConfig
	LLM     LLMConfig
	Session SessionConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	MaxUploadBytes  int64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LoaderConfig holds document loader configuration
type LoaderConfig struct {
	Pdftoppm       string
	DPI            int
	MaxRasterPages int
	MinTextLength  int
}

// LLMConfig holds extraction client configuration
type LLMConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	Temperature     float32
	Timeout         time.Duration
	DefaultCurrency string
}

// SessionConfig holds the transient result store configuration
type SessionConfig struct {
	TTL time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_MB", 20) * 1024 * 1024,
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 2*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Loader: LoaderConfig{
			Pdftoppm:       getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:            getEnvAsInt("RASTER_DPI", 200),
			MaxRasterPages: getEnvAsInt("RASTER_MAX_PAGES", 4),
			MinTextLength:  getEnvAsInt("MIN_TEXT_LENGTH", 100),
		},
		LLM: LLMConfig{
			APIKey:          getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:         getEnv("ANTHROPIC_BASE_URL", ""),
			Model:           getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			MaxTokens:       getEnvAsInt("ANTHROPIC_MAX_TOKENS", 2000),
			Temperature:     getEnvAsFloat32("ANTHROPIC_TEMPERATURE", 0.0),
			Timeout:         getEnvAsDuration("ANTHROPIC_TIMEOUT", 45*time.Second),
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "INR"),
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. A missing API credential is a
// fatal startup condition.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "ANTHROPIC_API_KEY is required", ErrConfiguration)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrConfiguration)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	return nil
}
