// Package config loads process configuration from the environment and the
// runtime trading settings from YAML. Both are validated up front; a bad
// configuration refuses to start the engine rather than failing later.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the process.
type Config struct {
	Port string

	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceTestnet   bool

	DBPath       string
	SettingsPath string

	JWTSecret     string
	AdminUsername string
	AdminPassword string
}

// Load reads environment variables (optionally via .env) into Config and
// validates the result.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",
		DBPath:           getEnv("DB_PATH", "./data/trades.db"),
		SettingsPath:     getEnv("SETTINGS_PATH", "settings.yaml"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		AdminUsername:    getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configuration the engine cannot run with.
func (c *Config) Validate() error {
	if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
		return errors.New("config: BINANCE_API_KEY and BINANCE_API_SECRET are required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.AdminPassword == "" {
		return errors.New("config: ADMIN_PASSWORD is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: invalid PORT %q", c.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
