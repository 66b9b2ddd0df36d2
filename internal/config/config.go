package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Teaching TeachingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	AuditLogPath       string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	JwtSecret   string
	HuggingFace string
}

type AIConfig struct {
	LLMProvider        string // "ollama" or "huggingface"
	LLMModel           string
	OllamaBaseURL      string
	HuggingFaceBaseURL string
}

// TeachingConfig drives the preset teaching pipeline.
type TeachingConfig struct {
	Enabled       bool
	Whitelist     string // off | all | comma separated scope ids
	BatchSize     int
	MaxChars      int // 0 disables
	MaxItems      int
	BatchTTL      time.Duration // 0 disables
	SweepInterval time.Duration
	MaxAttempts   int
	Timeout       time.Duration
	Model         string // overrides LLM_MODEL for teaching rounds
	MaxTokens     int
	Temperature   float64
	ExampleLimit  int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			AuditLogPath:       getEnv("TEACH_AUDIT_LOG_PATH", "logs/teaching_audit.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			JwtSecret:   getEnv("JWT_SECRET", ""),
			HuggingFace: getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
		},
		Teaching: TeachingConfig{
			Enabled:       getEnvAsBool("TEACH_ENABLED", true),
			Whitelist:     getEnv("TEACH_WHITELIST", "off"),
			BatchSize:     getEnvAsInt("TEACH_BATCH_SIZE", 3),
			MaxChars:      getEnvAsInt("TEACH_BATCH_MAX_CHARS", 0),
			MaxItems:      getEnvAsInt("TEACH_BATCH_MAX_ITEMS", 10),
			BatchTTL:      getEnvAsDuration("TEACH_BATCH_TTL", 0),
			SweepInterval: getEnvAsDuration("TEACH_SWEEP_INTERVAL", 30*time.Second),
			MaxAttempts:   getEnvAsInt("TEACH_MAX_ATTEMPTS", 2),
			Timeout:       getEnvAsDuration("TEACH_TIMEOUT", 90*time.Second),
			Model:         getEnv("TEACH_MODEL", ""),
			MaxTokens:     getEnvAsInt("TEACH_MAX_TOKENS", 1024),
			Temperature:   getEnvAsFloat("TEACH_TEMPERATURE", 0.2),
			ExampleLimit:  getEnvAsInt("TEACH_EXAMPLE_LIMIT", 2),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, ""))); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
