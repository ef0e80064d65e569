package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string

	// AI Provider Configuration
	AIProvider         string // "openai" or "mock"
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIImageModel   string
	OpenAIImageSize    string
	OpenAIImageQuality string
	AIRequestTimeout   time.Duration

	// Batch defaults (overridable from the command line)
	OutputDir    string
	NamingMode   string // "random" or "sanitized"
	MaxSizeMB    float64
	QualityFloor int
	MaxTitles    int // 0 means no cap

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// R2 Storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Metadata fetcher
	YtDlpPath string

	// Prometheus textfile written after each batch; empty disables it
	MetricsFile string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AIProvider:         getEnv("AI_PROVIDER", "openai"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIImageModel:   getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1.5"),
		OpenAIImageSize:    getEnv("OPENAI_IMAGE_SIZE", "1536x1024"),
		OpenAIImageQuality: getEnv("OPENAI_IMAGE_QUALITY", "high"),
		AIRequestTimeout:   getEnvDuration("AI_REQUEST_TIMEOUT", 120*time.Second),

		OutputDir:    getEnv("OUTPUT_DIR", "thumbnails"),
		NamingMode:   strings.ToLower(getEnv("NAMING_MODE", "random")),
		MaxSizeMB:    getEnvFloat("MAX_SIZE_MB", 2.0),
		QualityFloor: getEnvInt("QUALITY_FLOOR", 10),
		MaxTitles:    getEnvInt("MAX_TITLES", 10),

		StorageProvider:   getEnv("STORAGE_PROVIDER", "local"),
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		YtDlpPath:   getEnv("YTDLP_PATH", "yt-dlp"),
		MetricsFile: getEnv("METRICS_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values. A missing credential is reported here,
// before any batch is started.
func (c *Config) Validate() error {
	switch c.AIProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is 'openai'")
		}
	case "mock":
	default:
		return fmt.Errorf("AI_PROVIDER must be either 'openai' or 'mock', got: %s", c.AIProvider)
	}

	switch c.StorageProvider {
	case "local":
	case "r2":
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	if c.NamingMode != "random" && c.NamingMode != "sanitized" {
		return fmt.Errorf("NAMING_MODE must be either 'random' or 'sanitized', got: %s", c.NamingMode)
	}
	if c.MaxSizeMB <= 0 {
		return fmt.Errorf("MAX_SIZE_MB must be positive, got: %g", c.MaxSizeMB)
	}
	if c.QualityFloor < 1 || c.QualityFloor > 95 {
		return fmt.Errorf("QUALITY_FLOOR must be between 1 and 95, got: %d", c.QualityFloor)
	}
	if c.MaxTitles < 0 {
		return fmt.Errorf("MAX_TITLES must not be negative, got: %d", c.MaxTitles)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
