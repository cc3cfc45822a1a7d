package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrTelegramToken = errors.New("TELEGRAM_BOT_TOKEN is required")

type Config struct {
	TelegramToken string
	// GeminiAPIKey seeds the credential store when it is empty.
	GeminiAPIKey string

	LogLevel string `validate:"oneof=debug info warn error"`
	Debug    bool

	PreferIPv4 bool

	MediaGroupDebounce time.Duration
	MaxConcurrent      int           `validate:"min=1"`
	MaxHistoryMessages int           `validate:"min=1"`
	SessionTTL         time.Duration `validate:"gt=0"`
	RequestTimeout     time.Duration `validate:"gt=0"`
	HTTPTimeout        time.Duration `validate:"gt=0"`
	GeminiBaseURL      string        `validate:"required,url"`
	GeminiAPIVersion   string        `validate:"required"`
	WebAddr            string        `validate:"required"`

	CredentialFile string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int `validate:"min=0"`

	StoryboardConcurrency int           `validate:"min=1,max=16"`
	StoryboardPace        time.Duration `validate:"min=0"`
	AmazonConcurrency     int           `validate:"min=1,max=16"`
	AmazonPace            time.Duration `validate:"min=0"`
	ScenePace             time.Duration `validate:"min=0"`
	RetryAttempts         int           `validate:"min=0,max=10"`
	RetryDelay            time.Duration `validate:"min=0"`
	ImageSize             string        `validate:"oneof=1K 2K 4K"`

	ExportDir      string
	ExportBucket   string
	ExportPrefix   string
	ExportS3Region string
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:              strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:                 getEnvBool("DEBUG", false),
		PreferIPv4:            getEnvBool("PREFER_IPV4", true),
		MediaGroupDebounce:    time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:         getEnvInt("MAX_CONCURRENT", 4),
		MaxHistoryMessages:    getEnvInt("MAX_HISTORY_MESSAGES", 20),
		SessionTTL:            time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
		RequestTimeout:        time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:           time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GeminiBaseURL:         strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion:      strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		WebAddr:               getEnv("WEB_ADDR", ":8080"),
		CredentialFile:        getEnv("CREDENTIAL_FILE", ""),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		StoryboardConcurrency: getEnvInt("STORYBOARD_CONCURRENCY", 2),
		StoryboardPace:        time.Duration(getEnvInt("STORYBOARD_PACE_MS", 1500)) * time.Millisecond,
		AmazonConcurrency:     getEnvInt("AMAZON_CONCURRENCY", 4),
		AmazonPace:            time.Duration(getEnvInt("AMAZON_PACE_MS", 800)) * time.Millisecond,
		ScenePace:             time.Duration(getEnvInt("SCENE_PACE_MS", 1000)) * time.Millisecond,
		RetryAttempts:         getEnvInt("RETRY_ATTEMPTS", 2),
		RetryDelay:            time.Duration(getEnvInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		ImageSize:             strings.ToUpper(getEnv("IMAGE_SIZE", "1K")),
		ExportDir:             getEnv("EXPORT_DIR", ""),
		ExportBucket:          getEnv("EXPORT_S3_BUCKET", ""),
		ExportPrefix:          getEnv("EXPORT_S3_PREFIX", "exports"),
		ExportS3Region:        getEnv("EXPORT_S3_REGION", ""),
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxHistoryMessages < 1 {
		cfg.MaxHistoryMessages = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireBot checks the settings only the Telegram surface needs.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return ErrTelegramToken
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
