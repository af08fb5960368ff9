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

// ErrConfigurationMissing is returned by Load when a required setting is absent.
var ErrConfigurationMissing = errors.New("configuration missing")

// MissingError lists every required key that was not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("configuration missing: %s", strings.Join(e.Keys, ", "))
}

func (e *MissingError) Is(target error) bool {
	return target == ErrConfigurationMissing
}

type Config struct {
	OTel     OTelConfig
	OpenAI   OpenAIConfig
	Job      JobConfig
	Retry    RetryConfig
	Telegram TelegramConfig
	Speech   SpeechConfig
	Prompt   PromptConfig
	Delivery DeliveryConfig
	Redis    RedisConfig
	Env      string
	Port     string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	AssistantID string
}

type JobConfig struct {
	Timeout         time.Duration
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	PollMultiplier  float64
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	HTTPTimeout time.Duration // per attempt
}

type TelegramConfig struct {
	BotToken         string
	BaseURL          string
	MaxMessageLength int
}

type SpeechConfig struct {
	Enabled bool
	Model   string
	Voice   string
	Format  string
}

type PromptConfig struct {
	Template           string
	MissingPlaceholder string
}

type DeliveryConfig struct {
	Timeout    time.Duration
	BufferSize int
}

type RedisConfig struct {
	URL          string
	Stream       string
	StreamMaxLen int64
}

// Load reads configuration from environment variables.
// In development, a .env file in the working directory is loaded first.
// Required keys are checked once here so requests never discover a missing
// credential halfway through.
func Load() (Config, error) {
	if getEnv("VOICEOVER_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("VOICEOVER_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "voiceover"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AssistantID: getEnv("OPENAI_ASSISTANT_ID", ""),
		},
		Job: JobConfig{
			Timeout:         getEnvDuration("JOB_TIMEOUT", 60*time.Second),
			PollInterval:    getEnvDuration("JOB_POLL_INTERVAL", 500*time.Millisecond),
			MaxPollInterval: getEnvDuration("JOB_POLL_MAX_INTERVAL", 3*time.Second),
			PollMultiplier:  getEnvFloat("JOB_POLL_MULTIPLIER", 1.1),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
			MaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 5*time.Second),
			HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken:         getEnv("TELEGRAM_BOT_TOKEN", ""),
			BaseURL:          getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),
			MaxMessageLength: getEnvInt("TELEGRAM_MAX_MESSAGE_LENGTH", 4096),
		},
		Speech: SpeechConfig{
			Enabled: getEnvBool("TTS_ENABLED", false),
			Model:   getEnv("TTS_MODEL", "tts-1"),
			Voice:   getEnv("TTS_VOICE", "alloy"),
			Format:  getEnv("TTS_FORMAT", "opus"),
		},
		Prompt: PromptConfig{
			Template:           getEnv("PROMPT_TEMPLATE", "{{text}}"),
			MissingPlaceholder: getEnv("PROMPT_MISSING_PLACEHOLDER", "(not provided)"),
		},
		Delivery: DeliveryConfig{
			Timeout:    getEnvDuration("DELIVERY_TIMEOUT", 30*time.Second),
			BufferSize: getEnvInt("DELIVERY_FAILURE_BUFFER", 64),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			Stream:       getEnv("REDIS_DELIVERY_STREAM", "voiceover_deliveries"),
			StreamMaxLen: int64(getEnvInt("REDIS_DELIVERY_STREAM_MAXLEN", 10000)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports every missing required key at once.
func (c Config) Validate() error {
	var missing []string
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.OpenAI.AssistantID == "" {
		missing = append(missing, "OPENAI_ASSISTANT_ID")
	}
	if c.Telegram.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Job.Timeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive, got %s", c.Job.Timeout)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
