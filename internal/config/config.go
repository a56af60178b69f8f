// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every runtime setting for the service.
type Config struct {
	// DatabasePath is the SQLite database file.
	DatabasePath string
	// HistoryLogPath is the JSON-lines ping history log imported by the
	// history parser.
	HistoryLogPath string
	// APILogPath is the API request log imported by the fallback parser.
	APILogPath string
	// DataDir holds watermark files and other working state.
	DataDir string

	HTTPHost string
	HTTPPort string

	// SweepSchedule is the cron expression driving the overdue sweep.
	SweepSchedule string

	// SMSGatewayURL is the HTTP gateway for the sms channel; empty means
	// log-only delivery.
	SMSGatewayURL string
}

// Load reads configuration from environment variables, applying defaults
// for anything unset. A missing .env file is not an error.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("[Config] No .env file found, using environment")
	}

	dataDir := getenv("CRONWATCH_DATA_DIR", "data")
	return &Config{
		DatabasePath:   getenv("CRONWATCH_DB", filepath.Join(dataDir, "cronwatch.db")),
		HistoryLogPath: getenv("CRONWATCH_HISTORY_LOG", filepath.Join(dataDir, "ping_history.log")),
		APILogPath:     getenv("CRONWATCH_API_LOG", filepath.Join(dataDir, "api.log")),
		DataDir:        dataDir,
		HTTPHost:       getenv("CRONWATCH_HTTP_HOST", "0.0.0.0"),
		HTTPPort:       getenv("CRONWATCH_HTTP_PORT", "8080"),
		SweepSchedule:  getenv("CRONWATCH_SWEEP_SCHEDULE", "* * * * *"),
		SMSGatewayURL:  getenv("CRONWATCH_SMS_GATEWAY_URL", ""),
	}
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.HTTPHost, c.HTTPPort)
}

// EnsureDataDir creates the working directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
