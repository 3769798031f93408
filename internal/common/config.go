package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Normalize NormalizeConfig
	OCR       OCRConfig
	LLM       LLMConfig
	Extract   ExtractConfig
	Dedup     DedupConfig
	Upload    UploadConfig
	Pipeline  PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string `validate:"oneof=postgres sqlite"`
	DSN              string `validate:"required"`
	MaxConns         int32  `validate:"gte=1"`
	MinConns         int32  `validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// RedisConfig holds the KV store configuration. An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	Backend   string `validate:"oneof=local gcs"`
	LocalRoot string `validate:"required_if=Backend local"`
	GCSBucket string `validate:"required_if=Backend gcs"`
	Disk      string `validate:"required"`
}

// NormalizeConfig holds format normalization configuration
type NormalizeConfig struct {
	ImagesToPDF      bool
	StripEXIF        bool
	HeicConverter    string `validate:"oneof=heif-convert magick sips"`
	ArtifactCacheDir string
	ToolTimeout      time.Duration `validate:"gt=0"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext          string `validate:"required"`
	Pdftoppm           string `validate:"required"`
	Tesseract          string `validate:"required"`
	Language           string `validate:"required"`
	TessdataDir        string
	DPI                int           `validate:"gte=72,lte=1200"`
	MaxPages           int           `validate:"gte=1"`
	MinTextLength      int           `validate:"gte=0"`
	ToolTimeout        time.Duration `validate:"gt=0"`
	RateLimitPerMinute int           `validate:"gte=0"`
	UnknownTextLayer   string        `validate:"oneof=probe assume_text assume_scanned"`
}

// LLMConfig holds AI router configuration
type LLMConfig struct {
	Primary            string        `validate:"omitempty,oneof=openai anthropic gemini"`
	Fallback           string        `validate:"omitempty,oneof=openai anthropic gemini"`
	Timeout            time.Duration `validate:"gt=0"`
	RetryDelay         time.Duration
	CacheEnabled       bool
	CacheTTL           time.Duration
	TrimContent        bool
	CheapMaxTokens     int `validate:"gte=1"`
	RateLimitPerMinute int `validate:"gte=0"`

	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Gemini    GeminiConfig
}

// ProviderConfig holds HTTP provider credentials and model tiers
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	CheapModel string
	HeavyModel string
}

// GeminiConfig holds Vertex AI settings
type GeminiConfig struct {
	ProjectID  string
	Region     string
	CheapModel string
	HeavyModel string
}

// ExtractConfig holds strategy selection configuration
type ExtractConfig struct {
	PhoneRegion    string `validate:"len=2"`
	ValidateOutput bool
}

// DedupConfig holds duplicate-detection configuration
type DedupConfig struct {
	GlobalHashGuard bool
}

// UploadConfig holds CRM upload configuration
type UploadConfig struct {
	URL       string `validate:"omitempty,url"`
	Token     string
	Timeout   time.Duration `validate:"gt=0"`
	MarkerTTL time.Duration `validate:"gt=0"`
}

// PipelineConfig holds orchestration configuration
type PipelineConfig struct {
	Parallelism int    `validate:"gte=1"`
	WorkDir     string `validate:"required"`
	Workers     int    `validate:"gte=1"`
	QueueSize   int    `validate:"gte=1"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "local"),
			LocalRoot: getEnv("STORAGE_LOCAL_ROOT", "./data"),
			GCSBucket: getEnv("STORAGE_GCS_BUCKET", ""),
			Disk:      getEnv("STORAGE_DISK", "intakes"),
		},
		Normalize: NormalizeConfig{
			ImagesToPDF:      getEnvAsBool("NORMALIZE_IMAGES_TO_PDF", false),
			StripEXIF:        getEnvAsBool("NORMALIZE_STRIP_EXIF", true),
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", ""),
			ToolTimeout:      getEnvAsDuration("NORMALIZE_TOOL_TIMEOUT", 60*time.Second),
		},
		OCR: OCRConfig{
			Pdftotext:          getEnv("OCR_PDFTOTEXT", "pdftotext"),
			Pdftoppm:           getEnv("OCR_PDFTOPPM", "pdftoppm"),
			Tesseract:          getEnv("OCR_TESSERACT", "tesseract"),
			Language:           getEnv("OCR_LANGUAGE", "eng"),
			TessdataDir:        getEnv("TESSDATA_PREFIX", ""),
			DPI:                getEnvAsInt("OCR_DPI", 300),
			MaxPages:           getEnvAsInt("OCR_MAX_PAGES", 10),
			MinTextLength:      getEnvAsInt("OCR_MIN_TEXT_LENGTH", 50),
			ToolTimeout:        getEnvAsDuration("OCR_TOOL_TIMEOUT", 120*time.Second),
			RateLimitPerMinute: getEnvAsInt("OCR_RATE_LIMIT_PER_MINUTE", 60),
			UnknownTextLayer:   getEnv("OCR_UNKNOWN_TEXT_LAYER", "probe"),
		},
		LLM: LLMConfig{
			Primary:            getEnv("LLM_PRIMARY", "openai"),
			Fallback:           getEnv("LLM_FALLBACK", "anthropic"),
			Timeout:            getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
			RetryDelay:         getEnvAsDuration("LLM_RETRY_DELAY", 500*time.Millisecond),
			CacheEnabled:       getEnvAsBool("LLM_CACHE_ENABLED", true),
			CacheTTL:           getEnvAsDuration("LLM_CACHE_TTL", 24*time.Hour),
			TrimContent:        getEnvAsBool("LLM_TRIM_CONTENT", true),
			CheapMaxTokens:     getEnvAsInt("LLM_CHEAP_MAX_TOKENS", 8000),
			RateLimitPerMinute: getEnvAsInt("LLM_RATE_LIMIT_PER_MINUTE", 30),
			OpenAI: ProviderConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				CheapModel: getEnv("OPENAI_CHEAP_MODEL", "gpt-4o-mini"),
				HeavyModel: getEnv("OPENAI_HEAVY_MODEL", "gpt-4o"),
			},
			Anthropic: ProviderConfig{
				APIKey:     getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:    getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
				CheapModel: getEnv("ANTHROPIC_CHEAP_MODEL", "claude-3-5-haiku-latest"),
				HeavyModel: getEnv("ANTHROPIC_HEAVY_MODEL", "claude-sonnet-4-0"),
			},
			Gemini: GeminiConfig{
				ProjectID:  getEnv("GCP_PROJECT_ID", ""),
				Region:     getEnv("GCP_REGION", "us-central1"),
				CheapModel: getEnv("GEMINI_CHEAP_MODEL", "gemini-2.0-flash"),
				HeavyModel: getEnv("GEMINI_HEAVY_MODEL", "gemini-2.5-pro"),
			},
		},
		Extract: ExtractConfig{
			PhoneRegion:    getEnv("EXTRACT_PHONE_REGION", "US"),
			ValidateOutput: getEnvAsBool("EXTRACT_VALIDATE_OUTPUT", true),
		},
		Dedup: DedupConfig{
			GlobalHashGuard: getEnvAsBool("DEDUP_GLOBAL_HASH_GUARD", true),
		},
		Upload: UploadConfig{
			URL:       getEnv("CRM_UPLOAD_URL", ""),
			Token:     getEnv("CRM_UPLOAD_TOKEN", ""),
			Timeout:   getEnvAsDuration("CRM_UPLOAD_TIMEOUT", 30*time.Second),
			MarkerTTL: getEnvAsDuration("CRM_UPLOAD_MARKER_TTL", 24*time.Hour),
		},
		Pipeline: PipelineConfig{
			Parallelism: getEnvAsInt("PIPELINE_PARALLELISM", 4),
			WorkDir:     getEnv("PIPELINE_WORK_DIR", os.TempDir()),
			Workers:     getEnvAsInt("PIPELINE_WORKERS", 2),
			QueueSize:   getEnvAsInt("PIPELINE_QUEUE_SIZE", 64),
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	if c.LLM.Primary != "" && c.LLM.Primary == c.LLM.Fallback {
		return NewAppError("CONFIG_ERROR", "LLM_FALLBACK must differ from LLM_PRIMARY", ErrInvalidInput)
	}
	return nil
}
