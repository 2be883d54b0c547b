// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	// HTTP server
	Port    int
	DevMode bool

	// Logging
	LogLevel  string
	LogPretty bool

	// Marketplace credentials
	EbayClientID     string
	EbayClientSecret string
	EbayMarketplace  string

	// Storage
	DatabasePath string

	// Scan behavior
	ScanSchedule       string        // cron expression for the live scan
	CollectionSchedule string        // cron expression for historical collection
	InterCardDelay     time.Duration // pacing between watchlist cards
	PerChannelLimit    int
	MaxOpportunities   int

	// Fallback sold-price scraping
	SoldPriceFallback bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               envInt("PORT", 8080),
		DevMode:            envBool("DEV_MODE", false),
		LogLevel:           envString("LOG_LEVEL", "info"),
		LogPretty:          envBool("LOG_PRETTY", false),
		EbayClientID:       os.Getenv("EBAY_CLIENT_ID"),
		EbayClientSecret:   os.Getenv("EBAY_CLIENT_SECRET"),
		EbayMarketplace:    envString("EBAY_MARKETPLACE", "EBAY_US"),
		DatabasePath:       envString("DATABASE_PATH", "slabwatch.db"),
		ScanSchedule:       envString("SCAN_SCHEDULE", "@every 15m"),
		CollectionSchedule: envString("COLLECTION_SCHEDULE", "0 3 * * *"),
		InterCardDelay:     envDuration("INTER_CARD_DELAY", 2*time.Second),
		PerChannelLimit:    envInt("PER_CHANNEL_LIMIT", 4),
		MaxOpportunities:   envInt("MAX_OPPORTUNITIES", 200),
		SoldPriceFallback:  envBool("SOLD_PRICE_FALLBACK", true),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.InterCardDelay < 0 {
		return nil, fmt.Errorf("INTER_CARD_DELAY must not be negative")
	}
	return cfg, nil
}

// MarketplaceConfigured reports whether live marketplace credentials exist.
// Without them the server still runs: admin and history endpoints work, but
// scans fail fast.
func (c *Config) MarketplaceConfigured() bool {
	return c.EbayClientID != "" && c.EbayClientSecret != ""
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
