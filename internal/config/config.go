package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-counter-deck/pkg/validation"
)

// Backend and driver names accepted in configuration
const (
	AIBackendGateway = "gateway"
	AIBackendGemini  = "gemini"

	VisionBackendStub      = "stub"
	VisionBackendGoogle    = "google"
	VisionBackendTesseract = "tesseract"

	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	LogLevel           string        `yaml:"log_level"`

	AIBackend     string        `yaml:"ai_backend"`
	AIAPIKey      string        `yaml:"ai_api_key"`
	AIBaseURL     string        `yaml:"ai_base_url"`
	AIModel       string        `yaml:"ai_model"`
	AITimeout     time.Duration `yaml:"ai_timeout"`
	AIMaxAttempts int           `yaml:"ai_max_attempts"`
	AIRateLimit   float64       `yaml:"ai_rate_limit"`
	GeminiAPIKey  string        `yaml:"gemini_api_key"`

	VisionBackend      string        `yaml:"vision_backend"`
	GoogleVisionAPIKey string        `yaml:"google_vision_api_key"`
	VisionTimeout      time.Duration `yaml:"vision_timeout"`

	StorageDriver string `yaml:"storage_driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	DatabaseURL   string `yaml:"database_url"`

	AuthJWTSecret string `yaml:"auth_jwt_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
	CheckoutURL   string `yaml:"checkout_url"`

	AzureStorageAccount   string `yaml:"azure_storage_account"`
	AzureStorageKey       string `yaml:"azure_storage_key"`
	AzureStorageContainer string `yaml:"azure_storage_container"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// ArchiveEnabled reports whether deck screenshots should be copied to blob storage
func (c *Config) ArchiveEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Host:                  "0.0.0.0",
		Port:                  "8080",
		RequestTimeout:        90 * time.Second,
		MaxRequestBodySize:    10 * 1024 * 1024, // 10MB
		LogLevel:              "info",
		AIBackend:             AIBackendGateway,
		AITimeout:             60 * time.Second,
		AIMaxAttempts:         3,
		AIRateLimit:           5,
		VisionBackend:         VisionBackendStub,
		VisionTimeout:         15 * time.Second,
		StorageDriver:         StorageMemory,
		SQLitePath:            "data/counterdeck.db",
		AzureStorageContainer: "deck-images",
	}
}

// LoadFromEnv builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE and then environment variables, in that order.
func LoadFromEnv() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnvOrDefault("HOST", c.Host)
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", c.RequestTimeout)
	c.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", c.MaxRequestBodySize)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)

	c.AIBackend = strings.ToLower(getEnvOrDefault("AI_BACKEND", c.AIBackend))
	c.AIAPIKey = getEnvOrDefault("AI_API_KEY", c.AIAPIKey)
	c.AIBaseURL = getEnvOrDefault("AI_BASE_URL", c.AIBaseURL)
	c.AIModel = getEnvOrDefault("AI_MODEL", c.AIModel)
	c.AITimeout = parseDurationOrDefault("AI_TIMEOUT", c.AITimeout)
	c.AIMaxAttempts = int(parseIntOrDefault("AI_MAX_ATTEMPTS", int64(c.AIMaxAttempts)))
	c.AIRateLimit = parseFloatOrDefault("AI_RATE_LIMIT", c.AIRateLimit)
	c.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", c.GeminiAPIKey)

	c.VisionBackend = strings.ToLower(getEnvOrDefault("VISION_BACKEND", c.VisionBackend))
	c.GoogleVisionAPIKey = getEnvOrDefault("GOOGLE_VISION_API_KEY", c.GoogleVisionAPIKey)
	c.VisionTimeout = parseDurationOrDefault("VISION_TIMEOUT", c.VisionTimeout)

	c.StorageDriver = strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", c.StorageDriver))
	c.SQLitePath = getEnvOrDefault("SQLITE_PATH", c.SQLitePath)
	c.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.DatabaseURL)

	c.AuthJWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", c.AuthJWTSecret)
	c.WebhookSecret = getEnvOrDefault("WEBHOOK_SECRET", c.WebhookSecret)
	c.CheckoutURL = getEnvOrDefault("CHECKOUT_URL", c.CheckoutURL)

	c.AzureStorageAccount = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", c.AzureStorageAccount)
	c.AzureStorageKey = getEnvOrDefault("AZURE_STORAGE_KEY", c.AzureStorageKey)
	c.AzureStorageContainer = getEnvOrDefault("AZURE_STORAGE_CONTAINER", c.AzureStorageContainer)
}

// Validate checks ranges and backend names. Missing API keys are not an
// error here; they are reported on the first call that needs them.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.AITimeout <= 0 || c.VisionTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, ai=%s, vision=%s)",
			c.RequestTimeout, c.AITimeout, c.VisionTimeout)
	}
	if c.AIMaxAttempts < 1 {
		return fmt.Errorf("AI_MAX_ATTEMPTS must be >= 1 (got %d)", c.AIMaxAttempts)
	}
	if c.AIRateLimit < 0 {
		return fmt.Errorf("AI_RATE_LIMIT must be >= 0 (got %g)", c.AIRateLimit)
	}

	if err := oneOf("AI_BACKEND", c.AIBackend, AIBackendGateway, AIBackendGemini); err != nil {
		return err
	}
	if err := oneOf("VISION_BACKEND", c.VisionBackend, VisionBackendStub, VisionBackendGoogle, VisionBackendTesseract); err != nil {
		return err
	}
	if err := oneOf("STORAGE_DRIVER", c.StorageDriver, StorageMemory, StorageSQLite, StoragePostgres); err != nil {
		return err
	}
	if c.StorageDriver == StoragePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
	}
	if c.StorageDriver == StorageSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite storage driver")
	}

	urls := validation.NewURLValidator()
	for key, value := range map[string]string{"AI_BASE_URL": c.AIBaseURL, "CHECKOUT_URL": c.CheckoutURL} {
		if value == "" {
			continue
		}
		if err := urls.ValidateURL(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (expected one of %s)", key, value, strings.Join(allowed, ", "))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
