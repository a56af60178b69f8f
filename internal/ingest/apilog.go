package ingest

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"cronwatch/internal/db"
	"cronwatch/internal/metrics"
)

// apiLine matches the fixed Polish template the ping API writes, e.g.
//
//	[2025-04-12 19:55:13] [INFO] Otrzymano ping 'run' dla monitora 'ping-dc3307' (czas: 0s) [Tagi: a, b]
//
// with optional trailing source, timezone and cron blocks.
var apiLine = regexp.MustCompile(
	`^\[(.*?)\] \[INFO\] Otrzymano ping '(.*?)' dla monitora '(.*?)'.*?\(czas: ([\d.]+)s\)` +
		`(?:\s+\[Tagi: (.*?)\])?(?:\s+\[Źródło: (.*?)\])?(?:\s+\[Strefa: (.*?)\])?(?:\s+\[Cron: (.*?)\])?$`)

// APILogParser ingests the semi-structured API log written by the ping
// endpoint.
type APILogParser struct {
	store       Store
	path        string
	watermark   *Watermark
	transitions TransitionHandler
}

func NewAPILogParser(store Store, path string, watermark *Watermark, transitions TransitionHandler) *APILogParser {
	return &APILogParser{store: store, path: path, watermark: watermark, transitions: transitions}
}

// Parse ingests the API log and returns the number of pings imported.
func (p *APILogParser) Parse(ctx context.Context, incremental bool) (int, error) {
	f, err := os.Open(p.path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: %s", ErrLogNotFound, p.path)
	}
	if err != nil {
		return 0, fmt.Errorf("open api log: %w", err)
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
		line := scanner.Text()
		m := apiLine.FindStringSubmatch(line)
		if m == nil {
			if strings.Contains(line, "Otrzymano ping") {
				log.Warn().Str("line", line).Msg("[APILog] Skipping malformed log line")
				metrics.MalformedLines.WithLabelValues("api").Inc()
			}
			continue
		}
		ts := m[1]

		if incremental && last != "" && ts <= last {
			continue
		}

		if err := p.ingest(ctx, m); err != nil {
			log.Warn().Err(err).Str("line", line).Msg("[APILog] Failed to ingest ping")
			continue
		}
		count++
		if ts > highest {
			highest = ts
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read api log: %w", err)
	}

	if incremental && highest != "" && highest != last {
		if err := p.watermark.Save(highest); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (p *APILogParser) ingest(ctx context.Context, m []string) error {
	ts, state, name := m[1], m[2], m[3]
	seconds, _ := strconv.ParseFloat(m[4], 64)
	tagsCSV, runSource, timezone, cronSchedule := m[5], m[6], m[7], m[8]

	monitor, err := p.store.GetOrCreateMonitor(ctx, name, "")
	if err != nil {
		return err
	}

	eventTime := parseEventTime(ts)
	exitCode := 0
	if state == db.StateFail {
		exitCode = 1
	}
	ping := &db.Ping{
		MonitorID:    monitor.ID,
		UniqueID:     apiUniqueID(ts, name, state),
		State:        state,
		ExitCode:     &exitCode,
		Host:         "api-log",
		Timestamp:    eventTime,
		ReceivedAt:   eventTime,
		IP:           "127.0.0.1",
		RunSource:    runSource,
		Timezone:     timezone,
		CronSchedule: cronSchedule,
	}
	// Duration is reported in seconds; stored in milliseconds and only
	// meaningful for completed runs.
	if state == db.StateComplete {
		ms := seconds * 1000
		ping.Duration = &ms
	}

	for _, tagName := range strings.Split(tagsCSV, ",") {
		tagName = strings.TrimSpace(tagName)
		if tagName == "" {
			continue
		}
		tag, err := p.store.GetOrCreateTag(ctx, tagName)
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
	metrics.PingsIngested.WithLabelValues("api").Inc()

	if p.transitions != nil {
		p.transitions.HandlePingTransition(ctx, monitor, ping)
	}
	return nil
}

// apiUniqueID derives a stable id from the line's own fields so re-parsing
// the same line always yields the same id.
func apiUniqueID(ts, name, state string) string {
	sum := sha256.Sum256([]byte(ts + "|" + name + "|" + state))
	return hex.EncodeToString(sum[:])[:16]
}
