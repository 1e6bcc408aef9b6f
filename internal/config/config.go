// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/crossfolio/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir       string          // Base directory for all databases (always absolute)
	BaseCurrency  domain.Currency // Currency all portfolio totals are normalized into
	PivotCurrency domain.Currency // Intermediate currency for triangulated rates
	Benchmark     string          // Benchmark instrument for beta calculations
	LookbackDays  int             // Lookback window for volatility/beta/VaR (trading periods)
	VaRConfidence float64         // Confidence level for parametric VaR
	RefreshCron   string          // Cron expression driving snapshot refreshes
	LogLevel      string
	Port          int
	DevMode       bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CROSSFOLIO_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		BaseCurrency:  domain.Currency(getEnv("BASE_CURRENCY", "EUR")),
		PivotCurrency: domain.Currency(getEnv("PIVOT_CURRENCY", "USD")),
		Benchmark:     getEnv("BENCHMARK_INSTRUMENT", "SPX"),
		LookbackDays:  getEnvAsInt("LOOKBACK_DAYS", 252),
		VaRConfidence: getEnvAsFloat("VAR_CONFIDENCE", 0.95),
		RefreshCron:   getEnv("REFRESH_CRON", "*/15 * * * *"),
		Port:          getEnvAsInt("PORT", 8002),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and well-formed.
// Malformed configuration is a programmer error and fails startup.
func (c *Config) Validate() error {
	if c.BaseCurrency == "" {
		return fmt.Errorf("base currency must not be empty")
	}
	if c.PivotCurrency == "" {
		return fmt.Errorf("pivot currency must not be empty")
	}
	if c.LookbackDays <= 1 {
		return fmt.Errorf("lookback days must be greater than 1, got %d", c.LookbackDays)
	}
	if c.VaRConfidence <= 0 || c.VaRConfidence >= 1 {
		return fmt.Errorf("VaR confidence must be in (0, 1), got %v", c.VaRConfidence)
	}
	return nil
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
