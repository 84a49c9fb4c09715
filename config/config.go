// Package config loads gateway configuration from environment variables,
// with optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete gateway configuration
type Config struct {
	Server        ServerConfig
	Token         TokenConfig
	Scanner       ScannerConfig
	Proposer      ProposerConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// TokenConfig holds verification-token issuance configuration
type TokenConfig struct {
	Secret string        // HMAC signing secret
	TTL    time.Duration // validity window, seconds-to-minutes scale
}

// ScannerConfig holds content scanner configuration
type ScannerConfig struct {
	BlockedPhrasesFile string // optional newline-separated phrase list
}

// ProposerConfig holds external plan proposer configuration. An empty
// endpoint selects the in-process keyword proposer.
type ProposerConfig struct {
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
}

// AuditConfig holds audit trail configuration. PostgresDSN, when set, takes
// precedence over the JSONL file sink.
type AuditConfig struct {
	JSONLPath   string
	PostgresDSN string
	BufferSize  int
	WorkerCount int
}

// ObservabilityConfig holds logging and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
	MetricsPort    int
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8090),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Token: TokenConfig{
			Secret: getEnv("TOKEN_SECRET", ""),
			TTL:    getEnvAsDuration("TOKEN_TTL", 2*time.Minute),
		},
		Scanner: ScannerConfig{
			BlockedPhrasesFile: getEnv("SCANNER_BLOCKED_PHRASES_FILE", ""),
		},
		Proposer: ProposerConfig{
			Endpoint:   getEnv("PROPOSER_ENDPOINT", ""),
			Timeout:    getEnvAsDuration("PROPOSER_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvAsInt("PROPOSER_MAX_RETRIES", 3),
		},
		Audit: AuditConfig{
			JSONLPath:   getEnv("AUDIT_JSONL_PATH", "data/audit.jsonl"),
			PostgresDSN: getEnv("DATABASE_URL_AUDIT", ""),
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 10000),
			WorkerCount: getEnvAsInt("AUDIT_WORKER_COUNT", 4),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Token.TTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Token.TTL > time.Hour {
		return fmt.Errorf("token TTL %v exceeds the short-lived window", c.Token.TTL)
	}
	if c.IsProduction() && c.Token.Secret == "" {
		return fmt.Errorf("TOKEN_SECRET is required in production")
	}
	if c.Proposer.MaxRetries < 1 {
		return fmt.Errorf("proposer max retries must be at least 1")
	}
	if c.Audit.PostgresDSN == "" && c.Audit.JSONLPath == "" {
		return fmt.Errorf("audit sink required: set AUDIT_JSONL_PATH or DATABASE_URL_AUDIT")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
