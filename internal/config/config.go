package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all tunables for one serving process. Values come
// from the environment; the process supervisor owns port binding and
// worker-process count.
type Config struct {
	Host string
	Port string

	// MaxUploadBytes bounds the accepted request payload. Larger
	// uploads are rejected before the pipeline runs.
	MaxUploadBytes int64

	// EngineTimeout bounds a single recognition call; RequestTimeout
	// bounds the whole request including the one retry.
	EngineTimeout  time.Duration
	RequestTimeout time.Duration

	// ConfidenceThreshold drops spans below it from the response.
	// Zero keeps everything.
	ConfidenceThreshold float64

	// OCRLanguage is the Tesseract language pack, e.g. "eng".
	OCRLanguage string

	// OCRWorkers and OCRQueueSize bound the pool that runs blocking
	// recognition calls. Admission beyond queue capacity is rejected.
	OCRWorkers   int
	OCRQueueSize int

	// DocumentFetchTimeout bounds URL-based document downloads.
	DocumentFetchTimeout time.Duration

	// Optional Azure Blob Storage credentials for blob-hosted
	// documents on /extract-url.
	AzureStorageAccount string
	AzureStorageKey     string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:                 getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                 getEnvOrDefault("PORT", "8080"),
		MaxUploadBytes:       parseIntOrDefault("MAX_UPLOAD_BYTES", 10*1024*1024), // 10MB
		EngineTimeout:        parseMillisOrDefault("ENGINE_TIMEOUT_MS", 10*time.Second),
		RequestTimeout:       parseMillisOrDefault("REQUEST_TIMEOUT_MS", 30*time.Second),
		ConfidenceThreshold:  parseFloatOrDefault("CONFIDENCE_THRESHOLD", 0),
		OCRLanguage:          getEnvOrDefault("OCR_LANGUAGE", "eng"),
		OCRWorkers:           int(parseIntOrDefault("OCR_WORKERS", 0)), // 0 = NumCPU
		OCRQueueSize:         int(parseIntOrDefault("OCR_QUEUE_SIZE", 32)),
		DocumentFetchTimeout: parseDurationOrDefault("DOCUMENT_FETCH_TIMEOUT", 15*time.Second),
		AzureStorageAccount:  os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:      os.Getenv("AZURE_STORAGE_KEY"),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be > 0 (got %d)", cfg.MaxUploadBytes)
	}
	if cfg.EngineTimeout <= 0 || cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got engine=%s, request=%s)",
			cfg.EngineTimeout, cfg.RequestTimeout)
	}
	if cfg.EngineTimeout > cfg.RequestTimeout {
		return nil, fmt.Errorf("ENGINE_TIMEOUT_MS (%s) must not exceed REQUEST_TIMEOUT_MS (%s)",
			cfg.EngineTimeout, cfg.RequestTimeout)
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1] (got %g)", cfg.ConfidenceThreshold)
	}
	if cfg.OCRQueueSize <= 0 {
		return nil, fmt.Errorf("OCR_QUEUE_SIZE must be > 0 (got %d)", cfg.OCRQueueSize)
	}
	return cfg, nil
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

func parseMillisOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
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
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
