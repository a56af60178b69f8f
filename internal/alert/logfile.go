package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const defaultLogAdapterPath = "data/log-adapter.log"

type logConfig struct {
	Path string `json:"path"`
}

// logAdapter appends notifications to a local file, one structured line per
// message. Useful as an always-available fallback channel.
type logAdapter struct{}

func newLogAdapter() *logAdapter {
	return &logAdapter{}
}

func (a *logAdapter) Send(ctx context.Context, message string, config json.RawMessage) error {
	var cfg logConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("parse log config: %w", err)
		}
	}
	if cfg.Path == "" {
		cfg.Path = defaultLogAdapterPath
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log adapter directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log adapter file: %w", err)
	}
	defer f.Close()

	logger := zerolog.New(f).With().Timestamp().Logger()
	logger.Info().Msg(message)
	return nil
}
