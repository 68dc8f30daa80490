package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int
	ModelPath           string
	CatalogPath         string // YAML file overriding labels and categories, empty = built-in
	InputSize           int    // Square network input in pixels
	ConfidenceThreshold float64
	NMSThreshold        float64
	DetectorPoolSize    int // Number of loaded networks, one per concurrent request
	AcquireTimeout      time.Duration
	TempDirectory       string
	TempMaxAge          time.Duration
	TempSweepInterval   time.Duration
	MaxUploadSize       int64 // Bytes
	OutputCodec         string
	OutputExtension     string
	DefaultFPS          float64 // Used when the input container reports no frame rate
	ProgressEvery       int     // Publish progress every N frames
	StaticDirectory     string
	LogDirectory        string
	DatabasePath        string
	AllowedOrigins      []string
}

// Load reads an optional .env file and then builds the configuration from the environment.
func Load() *Config {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnvAsInt("PORT", 3000),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "best.onnx")),
		CatalogPath:         getEnv("CATALOG_PATH", ""),
		InputSize:           getEnvAsInt("INPUT_SIZE", 640),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		NMSThreshold:        getEnvAsFloat("NMS_THRESHOLD", 0.45),
		DetectorPoolSize:    getEnvAsInt("DETECTOR_POOL_SIZE", 1),
		AcquireTimeout:      time.Duration(getEnvAsInt("ACQUIRE_TIMEOUT_SECONDS", 30)) * time.Second,
		TempDirectory:       getEnv("TEMP_DIR", os.TempDir()),
		TempMaxAge:          time.Duration(getEnvAsInt("TEMP_MAX_AGE_MINUTES", 60)) * time.Minute,
		TempSweepInterval:   time.Duration(getEnvAsInt("TEMP_SWEEP_SECONDS", 300)) * time.Second,
		MaxUploadSize:       getEnvAsInt64("MAX_UPLOAD_MB", 512) << 20,
		OutputCodec:         getEnv("OUTPUT_CODEC", "mp4v"),
		OutputExtension:     getEnv("OUTPUT_EXT", ".mp4"),
		DefaultFPS:          getEnvAsFloat("DEFAULT_FPS", 30),
		ProgressEvery:       getEnvAsInt("PROGRESS_EVERY", 10),
		StaticDirectory:     getEnv("STATIC_DIR", filepath.Join(".", "static")),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "runs.db")),
		AllowedOrigins:      getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

// Validate reports the first setting that cannot be used to run the server.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH must not be empty")
	}
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		return fmt.Errorf("INPUT_SIZE must be a positive multiple of 32, got %d", c.InputSize)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0,1], got %v", c.ConfidenceThreshold)
	}
	if c.NMSThreshold <= 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("NMS_THRESHOLD must be in (0,1], got %v", c.NMSThreshold)
	}
	if c.DetectorPoolSize <= 0 {
		return fmt.Errorf("DETECTOR_POOL_SIZE must be positive, got %d", c.DetectorPoolSize)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.DefaultFPS <= 0 {
		return fmt.Errorf("DEFAULT_FPS must be positive, got %v", c.DefaultFPS)
	}
	if len(c.OutputCodec) != 4 {
		return fmt.Errorf("OUTPUT_CODEC must be a four character code, got %q", c.OutputCodec)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
