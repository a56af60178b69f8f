package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronwatch/internal/db"
)

type fakeStore struct {
	cfg  *db.MonitorConfig
	last *db.Ping
}

func (f *fakeStore) GetOrCreateConfig(ctx context.Context, monitorID uint) (*db.MonitorConfig, error) {
	if f.cfg != nil {
		return f.cfg, nil
	}
	return &db.MonitorConfig{
		MonitorID:        monitorID,
		ExpectedInterval: db.DefaultExpectedInterval,
		MaxDuration:      db.DefaultMaxDuration,
		GracePeriod:      db.DefaultGracePeriod,
	}, nil
}

func (f *fakeStore) LastPing(ctx context.Context, monitorID uint) (*db.Ping, error) {
	return f.last, nil
}

func newTestService(store Store, now time.Time) *Service {
	svc := NewService(store)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCronExpressionPrecedence(t *testing.T) {
	ctx := context.Background()

	// Configured expression wins over the ping-reported one.
	store := &fakeStore{
		cfg:  &db.MonitorConfig{ExpectedInterval: db.DefaultExpectedInterval, CronExpression: "0 * * * *"},
		last: &db.Ping{CronSchedule: "*/5 * * * *"},
	}
	expr, err := NewService(store).CronExpression(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", expr)

	// Without a configured one, a valid ping-reported schedule is used.
	store = &fakeStore{last: &db.Ping{CronSchedule: "*/5 * * * *"}}
	expr, err = NewService(store).CronExpression(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", expr)

	// An unparseable ping-reported schedule is ignored.
	store = &fakeStore{last: &db.Ping{CronSchedule: "99 99 * * *"}}
	expr, err = NewService(store).CronExpression(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "", expr)
}

func TestExpectedIntervalFor(t *testing.T) {
	ctx := context.Background()

	// Default interval plus a cron expression: derive from the expression.
	store := &fakeStore{
		cfg: &db.MonitorConfig{ExpectedInterval: db.DefaultExpectedInterval, CronExpression: "*/15 * * * *"},
	}
	interval, err := NewService(store).ExpectedIntervalFor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 900, interval)

	// Explicit non-default interval always wins over the expression.
	store = &fakeStore{
		cfg: &db.MonitorConfig{ExpectedInterval: 120, CronExpression: "*/15 * * * *"},
	}
	interval, err = NewService(store).ExpectedIntervalFor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 120, interval)

	// No expression anywhere: the configured interval as-is.
	store = &fakeStore{}
	interval, err = NewService(store).ExpectedIntervalFor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, db.DefaultExpectedInterval, interval)
}

func TestExpectedNextRun(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	// No pings yet.
	svc := newTestService(&fakeStore{}, now)
	next, err := svc.ExpectedNextRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "", next)

	// Expected time already passed.
	svc = newTestService(&fakeStore{last: &db.Ping{Timestamp: now.Unix() - 7200}}, now)
	next, err = svc.ExpectedNextRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Overdue", next)

	// Due in half an hour.
	svc = newTestService(&fakeStore{last: &db.Ping{Timestamp: now.Unix() - 1800}}, now)
	next, err = svc.ExpectedNextRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "In about 30 minutes", next)

	// Rounds up to a single minute.
	svc = newTestService(&fakeStore{last: &db.Ping{Timestamp: now.Unix() - 3599}}, now)
	next, err = svc.ExpectedNextRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "In about 1 minute", next)

	// Hour-scale phrasing for long intervals.
	svc = newTestService(&fakeStore{
		cfg:  &db.MonitorConfig{ExpectedInterval: 6 * Hour},
		last: &db.Ping{Timestamp: now.Unix()},
	}, now)
	next, err = svc.ExpectedNextRun(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "In about 6 hours", next)
}

func TestReadableSchedule(t *testing.T) {
	ctx := context.Background()

	store := &fakeStore{
		cfg: &db.MonitorConfig{ExpectedInterval: db.DefaultExpectedInterval, CronExpression: "@daily"},
	}
	out, err := NewService(store).ReadableSchedule(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Every day", out)

	store = &fakeStore{cfg: &db.MonitorConfig{ExpectedInterval: 300}}
	out, err = NewService(store).ReadableSchedule(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Every 5 minutes", out)
}
