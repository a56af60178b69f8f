package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"cronwatch/internal/db"
	"cronwatch/internal/metrics"
)

var historyLine = regexp.MustCompile(`^\[(.*?)\] (.*)$`)

// historyPayload is the JSON object carried on each history-log line.
type historyPayload struct {
	Monitor      string   `json:"monitor"`
	Project      string   `json:"project"`
	UniqueID     string   `json:"unique_id"`
	State        string   `json:"state"`
	Duration     *float64 `json:"duration"`
	ExitCode     *int     `json:"exit_code"`
	Host         string   `json:"host"`
	Timestamp    int64    `json:"timestamp"`
	ReceivedAt   int64    `json:"received_at"`
	IP           string   `json:"ip"`
	Error        string   `json:"error"`
	Tags         []string `json:"tags"`
	RunSource    string   `json:"run_source"`
	Timezone     string   `json:"timezone"`
	CronSchedule string   `json:"cron_schedule"`
}

// HistoryParser ingests the structured history log, one `[timestamp] {json}`
// line per ping.
type HistoryParser struct {
	store       Store
	path        string
	watermark   *Watermark
	transitions TransitionHandler
}

func NewHistoryParser(store Store, path string, watermark *Watermark, transitions TransitionHandler) *HistoryParser {
	return &HistoryParser{store: store, path: path, watermark: watermark, transitions: transitions}
}

// Parse ingests the history log and returns the number of pings imported.
// Malformed lines are skipped; a missing file is fatal to this invocation.
func (p *HistoryParser) Parse(ctx context.Context, incremental bool) (int, error) {
	f, err := os.Open(p.path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: %s", ErrLogNotFound, p.path)
	}
	if err != nil {
		return 0, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var last string
	if incremental {
		if last, err = p.watermark.Load(); err != nil {
			return 0, err
		}
	}
	highest := last

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := historyLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		ts, raw := m[1], m[2]

		if incremental && last != "" && ts <= last {
			continue
		}

		var payload historyPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.Monitor == "" {
			log.Warn().Str("timestamp", ts).Msg("[History] Skipping malformed log line")
			metrics.MalformedLines.WithLabelValues("history").Inc()
			continue
		}

		if err := p.ingest(ctx, &payload); err != nil {
			log.Warn().Err(err).Str("monitor", payload.Monitor).Msg("[History] Failed to ingest ping")
			continue
		}
		count++
		if ts > highest {
			highest = ts
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read history log: %w", err)
	}

	if incremental && highest != "" && highest != last {
		if err := p.watermark.Save(highest); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (p *HistoryParser) ingest(ctx context.Context, payload *historyPayload) error {
	monitor, err := p.store.GetOrCreateMonitor(ctx, payload.Monitor, payload.Project)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	ping := &db.Ping{
		MonitorID:    monitor.ID,
		UniqueID:     payload.UniqueID,
		State:        payload.State,
		Duration:     payload.Duration,
		ExitCode:     payload.ExitCode,
		Host:         payload.Host,
		Timestamp:    payload.Timestamp,
		ReceivedAt:   payload.ReceivedAt,
		IP:           payload.IP,
		Error:        payload.Error,
		RunSource:    payload.RunSource,
		Timezone:     payload.Timezone,
		CronSchedule: payload.CronSchedule,
	}
	if ping.UniqueID == "" {
		ping.UniqueID = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if ping.State == "" {
		ping.State = db.StateRun
	}
	if ping.Timestamp == 0 {
		ping.Timestamp = now
	}
	if ping.ReceivedAt == 0 {
		ping.ReceivedAt = now
	}

	for _, name := range payload.Tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tag, err := p.store.GetOrCreateTag(ctx, name)
		if err != nil {
			return err
		}
		ping.Tags = append(ping.Tags, *tag)
		if err := p.store.AttachMonitorTag(ctx, monitor, tag); err != nil {
			return err
		}
	}

	if err := p.store.CreatePing(ctx, ping); err != nil {
		return err
	}
	metrics.PingsIngested.WithLabelValues("history").Inc()

	if p.transitions != nil {
		p.transitions.HandlePingTransition(ctx, monitor, ping)
	}
	return nil
}
