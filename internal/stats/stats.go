// Package stats computes per-monitor run statistics over a recent window of
// pings.
package stats

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/stat"

	"cronwatch/internal/db"
)

// Store is the persistence surface the statistics service needs.
type Store interface {
	PingsSince(ctx context.Context, monitorID uint, since int64) ([]db.Ping, error)
}

// MonitorStats summarizes one monitor's activity within a window.
type MonitorStats struct {
	Total            int     `json:"total"`
	Completed        int     `json:"completed"`
	Failed           int     `json:"failed"`
	Running          int     `json:"running"`
	SuccessRate      float64 `json:"success_rate"`
	MeanDurationMS   float64 `json:"mean_duration_ms"`
	StdDevDurationMS float64 `json:"stddev_duration_ms"`
	P95DurationMS    float64 `json:"p95_duration_ms"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// MonitorStats aggregates pings received at or after since. The success rate
// considers only finished runs; an open RUN ping counts toward neither side.
// Duration statistics cover completed runs that reported a duration.
func (s *Service) MonitorStats(ctx context.Context, monitorID uint, since int64) (*MonitorStats, error) {
	pings, err := s.store.PingsSince(ctx, monitorID, since)
	if err != nil {
		return nil, err
	}

	out := &MonitorStats{Total: len(pings)}
	var durations []float64
	for _, p := range pings {
		switch p.State {
		case db.StateComplete:
			out.Completed++
			if p.Duration != nil {
				durations = append(durations, *p.Duration)
			}
		case db.StateFail:
			out.Failed++
		case db.StateRun:
			out.Running++
		}
	}

	if finished := out.Completed + out.Failed; finished > 0 {
		out.SuccessRate = float64(out.Completed) / float64(finished) * 100
	}

	if len(durations) > 0 {
		sort.Float64s(durations)
		out.MeanDurationMS = stat.Mean(durations, nil)
		if len(durations) > 1 {
			out.StdDevDurationMS = stat.StdDev(durations, nil)
		}
		out.P95DurationMS = stat.Quantile(0.95, stat.Empirical, durations, nil)
	}
	return out, nil
}
