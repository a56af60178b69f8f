package schedule

import (
	"context"
	"fmt"
	"math"
	"time"

	"cronwatch/internal/db"
)

// Store is the slice of the repository layer the scheduler needs.
type Store interface {
	GetOrCreateConfig(ctx context.Context, monitorID uint) (*db.MonitorConfig, error)
	LastPing(ctx context.Context, monitorID uint) (*db.Ping, error)
}

// Service answers schedule questions about a monitor: which cron expression
// governs it, how often it is expected to run and when the next run is due.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CronExpression resolves the expression governing the monitor: an explicit
// configured expression wins, else the cron schedule the client reported on
// the most recent ping, provided it parses. Empty when neither exists.
func (s *Service) CronExpression(ctx context.Context, monitorID uint) (string, error) {
	cfg, err := s.store.GetOrCreateConfig(ctx, monitorID)
	if err != nil {
		return "", err
	}
	if cfg.CronExpression != "" {
		return cfg.CronExpression, nil
	}

	last, err := s.store.LastPing(ctx, monitorID)
	if err != nil {
		return "", err
	}
	if last != nil && last.CronSchedule != "" {
		if ValidateExpression(last.CronSchedule) == nil {
			return last.CronSchedule, nil
		}
	}
	return "", nil
}

// ExpectedIntervalFor returns the monitor's expected run interval in seconds.
// A resolvable cron expression is only consulted while the configured
// interval is still at the factory default; an explicitly configured
// interval always wins over a derived one.
func (s *Service) ExpectedIntervalFor(ctx context.Context, monitorID uint) (int, error) {
	cfg, err := s.store.GetOrCreateConfig(ctx, monitorID)
	if err != nil {
		return 0, err
	}

	expr, err := s.CronExpression(ctx, monitorID)
	if err != nil {
		return 0, err
	}
	if expr != "" && cfg.ExpectedInterval == db.DefaultExpectedInterval {
		return ExpectedInterval(expr), nil
	}
	return cfg.ExpectedInterval, nil
}

// ExpectedNextRun renders when the monitor is next expected to report.
// Returns "" when the monitor has no pings yet and the literal "Overdue"
// when the expected time is already in the past.
func (s *Service) ExpectedNextRun(ctx context.Context, monitorID uint) (string, error) {
	last, err := s.store.LastPing(ctx, monitorID)
	if err != nil {
		return "", err
	}
	if last == nil {
		return "", nil
	}

	interval, err := s.ExpectedIntervalFor(ctx, monitorID)
	if err != nil {
		return "", err
	}

	expectedNext := last.Timestamp + int64(interval)
	now := s.now().Unix()
	if expectedNext < now {
		return "Overdue", nil
	}

	minutes := int(math.Ceil(float64(expectedNext-now) / 60))
	if minutes < 60 {
		if minutes == 1 {
			return "In about 1 minute", nil
		}
		return fmt.Sprintf("In about %d minutes", minutes), nil
	}
	hours := int(math.Ceil(float64(minutes) / 60))
	if hours == 1 {
		return "In about 1 hour", nil
	}
	return fmt.Sprintf("In about %d hours", hours), nil
}

// ReadableSchedule is a human description of how often the monitor runs.
func (s *Service) ReadableSchedule(ctx context.Context, monitorID uint) (string, error) {
	expr, err := s.CronExpression(ctx, monitorID)
	if err != nil {
		return "", err
	}
	if expr != "" {
		return ReadableInterval(ExpectedInterval(expr)), nil
	}

	cfg, err := s.store.GetOrCreateConfig(ctx, monitorID)
	if err != nil {
		return "", err
	}
	return ReadableInterval(cfg.ExpectedInterval), nil
}
