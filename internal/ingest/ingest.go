// Package ingest normalizes external log files into persisted Ping records.
// Two independent parsers share the same contract: parse the whole file,
// skip malformed lines, and in incremental mode resume from a per-parser
// watermark timestamp.
package ingest

import (
	"context"
	"errors"
	"time"

	"cronwatch/internal/db"
)

// ErrLogNotFound marks a missing or unreadable source log file. Fatal to
// that parse invocation only.
var ErrLogNotFound = errors.New("log file not found")

// Timestamps in both log formats use this layout. Lexicographic comparison
// of rendered timestamps matches chronological order.
const timestampLayout = "2006-01-02 15:04:05"

// Store is the slice of the repository layer the parsers need.
type Store interface {
	GetOrCreateMonitor(ctx context.Context, name, projectName string) (*db.Monitor, error)
	GetOrCreateTag(ctx context.Context, name string) (*db.Tag, error)
	AttachMonitorTag(ctx context.Context, m *db.Monitor, tag *db.Tag) error
	CreatePing(ctx context.Context, p *db.Ping) error
}

// TransitionHandler is notified after each persisted ping so state-change
// detection runs at the call site rather than inside the data model.
type TransitionHandler interface {
	HandlePingTransition(ctx context.Context, monitor *db.Monitor, ping *db.Ping)
}

func parseEventTime(ts string) int64 {
	t, err := time.ParseInLocation(timestampLayout, ts, time.Local)
	if err != nil {
		return time.Now().Unix()
	}
	return t.Unix()
}
