// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults for the optimizer parameters.
const (
	DefaultTradingDays    = 252
	DefaultRiskFreeRate   = 0.0
	DefaultFrontierPoints = 50
	DefaultPort           = 8080
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the runs database
	LogLevel       string
	Pretty         bool // Pretty console logging
	Port           int
	TradingDays    int     // Annualization factor for daily returns
	RiskFreeRate   float64 // Annual risk-free rate for Sharpe calculations
	FrontierPoints int     // Default efficient frontier grid size
	ShortAllowed   bool    // Default short-selling toggle
	SweepWorkers   int     // Concurrent frontier point solves (1 = sequential)
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:        getEnv("FRONTIER_DATA_DIR", "./data"),
		LogLevel:       getEnv("FRONTIER_LOG_LEVEL", "info"),
		Pretty:         getEnvBool("FRONTIER_LOG_PRETTY", false),
		Port:           getEnvInt("FRONTIER_PORT", DefaultPort),
		TradingDays:    getEnvInt("FRONTIER_TRADING_DAYS", DefaultTradingDays),
		RiskFreeRate:   getEnvFloat("FRONTIER_RISK_FREE_RATE", DefaultRiskFreeRate),
		FrontierPoints: getEnvInt("FRONTIER_POINTS", DefaultFrontierPoints),
		ShortAllowed:   getEnvBool("FRONTIER_SHORT_ALLOWED", false),
		SweepWorkers:   getEnvInt("FRONTIER_SWEEP_WORKERS", 1),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.TradingDays <= 0 {
		return nil, fmt.Errorf("invalid trading days: %d", cfg.TradingDays)
	}
	if cfg.FrontierPoints <= 0 {
		return nil, fmt.Errorf("invalid frontier points: %d", cfg.FrontierPoints)
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
