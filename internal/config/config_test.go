package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data/cronwatch.db", cfg.DatabasePath)
	assert.Equal(t, "data/ping_history.log", cfg.HistoryLogPath)
	assert.Equal(t, "data/api.log", cfg.APILogPath)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
	assert.Equal(t, "* * * * *", cfg.SweepSchedule)
	assert.Empty(t, cfg.SMSGatewayURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CRONWATCH_DATA_DIR", "/var/lib/cronwatch")
	t.Setenv("CRONWATCH_DB", "/var/lib/cronwatch/watch.db")
	t.Setenv("CRONWATCH_HTTP_PORT", "9999")
	t.Setenv("CRONWATCH_SWEEP_SCHEDULE", "*/5 * * * *")

	cfg := Load()
	assert.Equal(t, "/var/lib/cronwatch", cfg.DataDir)
	assert.Equal(t, "/var/lib/cronwatch/watch.db", cfg.DatabasePath)
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddr())
	assert.Equal(t, "*/5 * * * *", cfg.SweepSchedule)

	// Unset paths still derive from the overridden data dir.
	assert.Equal(t, "/var/lib/cronwatch/ping_history.log", cfg.HistoryLogPath)
}
