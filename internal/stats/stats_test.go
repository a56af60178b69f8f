package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronwatch/internal/db"
)

type fakeStore struct {
	pings []db.Ping
}

func (f *fakeStore) PingsSince(ctx context.Context, monitorID uint, since int64) ([]db.Ping, error) {
	var out []db.Ping
	for _, p := range f.pings {
		if p.Timestamp >= since {
			out = append(out, p)
		}
	}
	return out, nil
}

func ptr(v float64) *float64 { return &v }

func TestMonitorStats(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{pings: []db.Ping{
		{State: db.StateRun, Timestamp: 100},
		{State: db.StateComplete, Timestamp: 200, Duration: ptr(1000)},
		{State: db.StateComplete, Timestamp: 300, Duration: ptr(2000)},
		{State: db.StateComplete, Timestamp: 400, Duration: ptr(3000)},
		{State: db.StateFail, Timestamp: 500},
	}}

	out, err := NewService(store).MonitorStats(ctx, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, out.Total)
	assert.Equal(t, 3, out.Completed)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 1, out.Running)
	// 3 of 4 finished runs completed.
	assert.InDelta(t, 75.0, out.SuccessRate, 0.001)
	assert.InDelta(t, 2000.0, out.MeanDurationMS, 0.001)
	assert.InDelta(t, 1000.0, out.StdDevDurationMS, 0.001)
	assert.InDelta(t, 3000.0, out.P95DurationMS, 0.001)
}

func TestMonitorStatsWindow(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{pings: []db.Ping{
		{State: db.StateComplete, Timestamp: 100, Duration: ptr(1000)},
		{State: db.StateFail, Timestamp: 500},
	}}

	out, err := NewService(store).MonitorStats(ctx, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 0.0, out.SuccessRate)
}

func TestMonitorStatsEmpty(t *testing.T) {
	out, err := NewService(&fakeStore{}).MonitorStats(context.Background(), 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, out.Total)
	assert.Equal(t, 0.0, out.SuccessRate)
	assert.Equal(t, 0.0, out.MeanDurationMS)
	assert.Equal(t, 0.0, out.StdDevDurationMS)
	assert.Equal(t, 0.0, out.P95DurationMS)
}

func TestMonitorStatsIgnoresDurationlessCompletes(t *testing.T) {
	store := &fakeStore{pings: []db.Ping{
		{State: db.StateComplete, Timestamp: 100},
		{State: db.StateComplete, Timestamp: 200, Duration: ptr(500)},
	}}

	out, err := NewService(store).MonitorStats(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Completed)
	assert.InDelta(t, 500.0, out.MeanDurationMS, 0.001)
	assert.Equal(t, 0.0, out.StdDevDurationMS)
}
