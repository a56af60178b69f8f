package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Watermark persists the timestamp of the last processed log line so
// incremental imports can resume where the previous run stopped. One file
// per parser, a single plain-text timestamp line.
type Watermark struct {
	path string
}

func NewWatermark(path string) *Watermark {
	return &Watermark{path: path}
}

// Load returns the stored timestamp, or "" when no watermark exists yet.
func (w *Watermark) Load() (string, error) {
	data, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read watermark %s: %w", w.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the timestamp, creating the parent directory if needed.
func (w *Watermark) Save(timestamp string) error {
	if dir := filepath.Dir(w.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watermark directory: %w", err)
		}
	}
	if err := os.WriteFile(w.path, []byte(timestamp), 0o644); err != nil {
		return fmt.Errorf("write watermark %s: %w", w.path, err)
	}
	return nil
}
