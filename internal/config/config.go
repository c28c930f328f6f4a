// ABOUTME: Centralized configuration for the refinery pipeline
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Config holds all configuration for the refinement pipeline.
// It is built once at startup and passed by value into constructors.
type Config struct {
	// Storage
	DBPath string

	// Generative service
	APIBase        string
	APIKey         string
	DefaultModel   string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	MaxTokens      int
	Temperature    float64
	CatalogPath    string

	// Pipeline thresholds
	MinContentLength int
	SplitWindow      int
	PriorTailChars   int
	RosterLimit      int
	HistoryLimit     int
	LeaseTTL         time.Duration

	// Observability
	LogLevel    string
	MetricsAddr string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	apiKey := os.Getenv("REFINERY_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg := &Config{
		DBPath:           getEnv("REFINERY_DB", DefaultDBPath()),
		APIBase:          getEnv("REFINERY_API_BASE", "http://localhost:4000/v1/chat/completions"),
		APIKey:           apiKey,
		DefaultModel:     getEnv("REFINERY_DEFAULT_MODEL", "opus"),
		ConnectTimeout:   getEnvDuration("REFINERY_CONNECT_TIMEOUT", 30*time.Second),
		ReadTimeout:      getEnvDuration("REFINERY_READ_TIMEOUT", 600*time.Second),
		MaxAttempts:      getEnvInt("REFINERY_MAX_ATTEMPTS", 3),
		BackoffBase:      getEnvDuration("REFINERY_BACKOFF_BASE", 5*time.Second),
		MaxTokens:        getEnvInt("REFINERY_MAX_TOKENS", 8000),
		Temperature:      getEnvFloat("REFINERY_TEMPERATURE", 0.3),
		CatalogPath:      os.Getenv("REFINERY_MODEL_CATALOG"),
		MinContentLength: getEnvInt("REFINERY_MIN_CONTENT", 100),
		SplitWindow:      getEnvInt("REFINERY_SPLIT_WINDOW", 500),
		PriorTailChars:   getEnvInt("REFINERY_PRIOR_TAIL", 5000),
		RosterLimit:      getEnvInt("REFINERY_ROSTER_LIMIT", 10),
		HistoryLimit:     getEnvInt("REFINERY_HISTORY_LIMIT", 10),
		LeaseTTL:         getEnvDuration("REFINERY_LEASE_TTL", 30*time.Minute),
		LogLevel:         getEnv("REFINERY_LOG_LEVEL", "info"),
		MetricsAddr:      os.Getenv("REFINERY_METRICS_ADDR"),
	}

	return cfg, cfg.Validate()
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return fmt.Errorf("REFINERY_MAX_ATTEMPTS must be 1-10, got %d", c.MaxAttempts)
	}
	if c.BackoffBase < 0 {
		return fmt.Errorf("REFINERY_BACKOFF_BASE must not be negative, got %v", c.BackoffBase)
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive (connect %v, read %v)", c.ConnectTimeout, c.ReadTimeout)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("REFINERY_TEMPERATURE must be 0-2, got %f", c.Temperature)
	}
	if c.MinContentLength < 10 {
		return fmt.Errorf("REFINERY_MIN_CONTENT must be at least 10, got %d", c.MinContentLength)
	}
	if c.SplitWindow < 0 {
		return fmt.Errorf("REFINERY_SPLIT_WINDOW must not be negative, got %d", c.SplitWindow)
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("REFINERY_LEASE_TTL must be positive, got %v", c.LeaseTTL)
	}
	return nil
}

// DefaultDBPath returns the database path under the XDG data directory
func DefaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "refinery", "refinery.db")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
