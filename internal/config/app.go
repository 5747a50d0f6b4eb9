package config

import (
	"ai-chat/internal/logger"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Auth     AuthConfig
	Models   *ModelsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver         string
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	SQLitePath     string
	MigrationsPath string
}

// RedisConfig configures the optional distributed stream lock.
// An empty URL disables it.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	LockTTL  time.Duration
}

// LLMConfig holds completion provider configuration
type LLMConfig struct {
	OpenAIAPIKey        string
	GroqAPIKey          string
	OpenRouterAPIKey    string
	GeminiAPIKey        string
	BaseURLOverride     string
	DefaultSystemPrompt string
	GenerationTimeout   time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	config.Database = DatabaseConfig{
		Driver:         getEnvOrDefault("DB_DRIVER", "postgres"),
		Host:           getEnvOrDefault("DB_HOST", "postgres"),
		Port:           getEnvOrDefault("DB_PORT", "5432"),
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:           getEnvOrDefault("DB_NAME", "chatapp"),
		SSLMode:        getEnvOrDefault("DB_SSLMODE", "disable"),
		SQLitePath:     getEnvOrDefault("SQLITE_PATH", "chat.db"),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
	}
	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", config.Database.Driver)
	}

	config.Redis = RedisConfig{
		URL:      os.Getenv("REDIS_URL"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvAsInt("REDIS_DB", 0),
		LockTTL:  getEnvAsDuration("STREAM_LOCK_TTL", 5*time.Minute),
	}

	config.LLM = LLMConfig{
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		GroqAPIKey:          os.Getenv("GROQ_API_KEY"),
		OpenRouterAPIKey:    os.Getenv("OPENROUTER_API_KEY"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		BaseURLOverride:     os.Getenv("PROVIDER_BASE_URL"),
		DefaultSystemPrompt: getEnvOrDefault("DEFAULT_SYSTEM_PROMPT", "You are a helpful assistant"),
		GenerationTimeout:   getEnvAsDuration("GENERATION_TIMEOUT", 2*time.Minute),
	}
	if missing := MissingKeys(); len(missing) > 0 {
		logger.Log.WithField("missing", missing).Warn("Some provider keys are not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
	}

	modelsConfigPath := getEnvOrDefault("MODELS_CONFIG_PATH", filepath.Join("config", "models.json"))
	modelsConfig, err := NewModelsConfig(modelsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIKeyFor returns the environment-level key for a provider backend
func (c *LLMConfig) APIKeyFor(backend string) string {
	switch backend {
	case "openai":
		return c.OpenAIAPIKey
	case "groq":
		return c.GroqAPIKey
	case "openrouter", "genkit":
		return c.OpenRouterAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
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
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
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
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}
