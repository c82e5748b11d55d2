package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Store         StoreConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Classifier    ClassifierConfig
	Policy        mapping.Policy
	Scheduler     SchedulerConfig
	Archive       ArchiveConfig
}

type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// ClassifierConfig configures the optional AI classifier. An empty APIKey disables it.
type ClassifierConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

// Enabled reports whether the classifier has credentials.
func (c ClassifierConfig) Enabled() bool {
	return c.APIKey != ""
}

type SchedulerConfig struct {
	SynonymRefreshCron string
}

// ArchiveConfig locates the archive for unmapped or rejected extracts. Empty disables it.
type ArchiveConfig struct {
	Dir string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	defaults := mapping.DefaultPolicy()

	cfg := &Config{
		Store: StoreConfig{
			Backend: getEnv("MAPPER_STORE", StoreMemory),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "depletion-mapper"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Classifier: ClassifierConfig{
			APIKey:     getEnv("CLASSIFIER_API_KEY", ""),
			Model:      getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
			BaseURL:    getEnv("CLASSIFIER_BASE_URL", "https://api.openai.com/v1"),
			Timeout:    getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
			BatchSize:  getEnvAsInt("CLASSIFIER_BATCH_SIZE", 25),
			BatchDelay: getEnvAsDuration("CLASSIFIER_BATCH_DELAY", 500*time.Millisecond),
		},
		Policy: mapping.Policy{
			ReuseThreshold:      getEnvAsFloat("REUSE_THRESHOLD", defaults.ReuseThreshold),
			AcceptanceThreshold: getEnvAsFloat("ACCEPTANCE_THRESHOLD", defaults.AcceptanceThreshold),
			AIFloor:             getEnvAsFloat("AI_FLOOR", defaults.AIFloor),
			AIFastPath:          getEnvAsFloat("AI_FAST_PATH", defaults.AIFastPath),
			LowConfidence:       getEnvAsFloat("LOW_CONFIDENCE", defaults.LowConfidence),
			SampleRowLimit:      getEnvAsInt("SAMPLE_ROW_LIMIT", defaults.SampleRowLimit),
			QuantityMax:         getEnvAsInt("QUANTITY_MAX", defaults.QuantityMax),
			SynonymUsageBoost:   getEnvAsFloat("SYNONYM_USAGE_BOOST", defaults.SynonymUsageBoost),
			LearnedReuseBoost:   getEnvAsFloat("LEARNED_REUSE_BOOST", defaults.LearnedReuseBoost),
		},
		Scheduler: SchedulerConfig{
			SynonymRefreshCron: getEnv("SYNONYM_REFRESH_CRON", "*/15 * * * *"),
		},
		Archive: ArchiveConfig{
			Dir: getEnv("ARCHIVE_DIR", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("MAPPER_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Backend)
	}

	thresholds := map[string]float64{
		"REUSE_THRESHOLD":      c.Policy.ReuseThreshold,
		"ACCEPTANCE_THRESHOLD": c.Policy.AcceptanceThreshold,
		"AI_FLOOR":             c.Policy.AIFloor,
		"AI_FAST_PATH":         c.Policy.AIFastPath,
		"LOW_CONFIDENCE":       c.Policy.LowConfidence,
	}
	for name, v := range thresholds {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %v", name, v)
		}
	}

	if c.Classifier.Enabled() && c.Classifier.Model == "" {
		return errors.New("CLASSIFIER_MODEL is required when CLASSIFIER_API_KEY is set")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
