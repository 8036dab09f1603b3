package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	AskModeCommand    = "command"
	AskModeSingleShot = "single_shot"
)

type Config struct {
	App       AppConfig
	Telegram  TelegramConfig
	Inference InferenceConfig
	Session   SessionConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string
	LogFilePath        string `validate:"required"`
	CorsAllowedOrigins string
	NatsURL            string // empty disables the NATS sink
	EventsTopic        string `validate:"required"`
}

type TelegramConfig struct {
	BotToken    string
	APIEndpoint string // optional, e.g. a local Bot API server
}

type InferenceConfig struct {
	Provider    string        `validate:"oneof=datasphere openai lmstudio ollama"`
	URL         string        `validate:"required,url"`
	Model       string        `validate:"required"`
	APIKey      string
	Timeout     time.Duration `validate:"gt=0"`
	Temperature float64       `validate:"gte=0,lte=2"`
	MaxTokens   int           `validate:"gt=0"`
}

type SessionConfig struct {
	QuotaBytes      int64         `validate:"gt=0"`
	IdleTTL         time.Duration `validate:"gt=0"`
	PDFDPI          int           `validate:"gte=36,lte=600"`
	MaxChars        int           `validate:"gt=0"`
	AskMode         string        `validate:"oneof=command single_shot"`
	RequireDocument bool
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			EventsTopic:        getEnv("EVENTS_TOPIC", "session.events"),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			APIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
		},
		Inference: InferenceConfig{
			Provider:    strings.ToLower(getEnv("INFERENCE_PROVIDER", "datasphere")),
			URL:         getEnv("INFERENCE_URL", "http://localhost:1234/v1/chat/completions"),
			Model:       getEnv("INFERENCE_MODEL", "local-model"),
			APIKey:      getEnv("INFERENCE_API_KEY", ""),
			Timeout:     getEnvAsDuration("INFERENCE_TIMEOUT", 120*time.Second),
			Temperature: getEnvAsFloat("INFERENCE_TEMPERATURE", 0.7),
			MaxTokens:   getEnvAsInt("INFERENCE_MAX_TOKENS", 2000),
		},
		Session: SessionConfig{
			QuotaBytes:      getEnvAsInt64("SESSION_QUOTA_BYTES", 1048576),
			IdleTTL:         getEnvAsDuration("SESSION_IDLE_TTL", time.Hour),
			PDFDPI:          getEnvAsInt("PDF_DPI", 200),
			MaxChars:        getEnvAsInt("RESPONSE_MAX_CHARS", 4000),
			AskMode:         strings.ToLower(getEnv("ASK_MODE", AskModeCommand)),
			RequireDocument: getEnvAsBool("REQUIRE_DOCUMENT", false),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// Validate checks the struct tags above and returns the first failing field.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) SingleShot() bool {
	return c.Session.AskMode == AskModeSingleShot
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

func getEnvAsInt64(key string, fallback int64) int64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") and plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
