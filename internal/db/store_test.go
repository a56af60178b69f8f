package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := OpenMemory()
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	return NewStore(gdb)
}

func TestGetOrCreateMonitor(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m1, err := store.GetOrCreateMonitor(ctx, "backup-daily", "infra")
	require.NoError(t, err)
	assert.NotZero(t, m1.ID)
	assert.Equal(t, "infra", m1.ProjectName)

	// Same name returns the same row.
	m2, err := store.GetOrCreateMonitor(ctx, "backup-daily", "")
	require.NoError(t, err)
	assert.Equal(t, m1.ID, m2.ID)
	assert.Equal(t, "infra", m2.ProjectName)

	// A new project name is written through.
	m3, err := store.GetOrCreateMonitor(ctx, "backup-daily", "platform")
	require.NoError(t, err)
	assert.Equal(t, m1.ID, m3.ID)
	assert.Equal(t, "platform", m3.ProjectName)
}

func TestGetOrCreateConfigDefaults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m, err := store.GetOrCreateMonitor(ctx, "job", "")
	require.NoError(t, err)

	cfg, err := store.GetOrCreateConfig(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultExpectedInterval, cfg.ExpectedInterval)
	assert.Equal(t, DefaultAlertThreshold, cfg.AlertThreshold)
	assert.Equal(t, DefaultMaxDuration, cfg.MaxDuration)
	assert.Equal(t, DefaultFailureTolerance, cfg.FailureTolerance)
	assert.Equal(t, DefaultGracePeriod, cfg.GracePeriod)
	assert.Empty(t, cfg.CronExpression)

	// Second access returns the persisted row, not a new one.
	cfg.ExpectedInterval = 300
	require.NoError(t, store.SaveConfig(ctx, cfg))
	again, err := store.GetOrCreateConfig(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, again.ID)
	assert.Equal(t, 300, again.ExpectedInterval)
}

func TestRecentPingsOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m, err := store.GetOrCreateMonitor(ctx, "job", "")
	require.NoError(t, err)

	base := int64(1_700_000_000)
	states := []string{StateRun, StateComplete, StateFail, StateFail, StateComplete}
	for i, state := range states {
		require.NoError(t, store.CreatePing(ctx, &Ping{
			MonitorID: m.ID,
			UniqueID:  "p" + string(rune('a'+i)),
			State:     state,
			Timestamp: base + int64(i*60),
		}))
	}

	last, err := store.LastPing(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, StateComplete, last.State)
	assert.Equal(t, base+240, last.Timestamp)

	recent, err := store.RecentPings(ctx, m.ID, 3, "")
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].Timestamp > recent[1].Timestamp)
	assert.True(t, recent[1].Timestamp > recent[2].Timestamp)

	fails, err := store.RecentPings(ctx, m.ID, 10, StateFail)
	require.NoError(t, err)
	assert.Len(t, fails, 2)

	since, err := store.PingsSince(ctx, m.ID, base+120)
	require.NoError(t, err)
	assert.Len(t, since, 3)
	assert.Equal(t, base+120, since[0].Timestamp)
}

func TestOverdueLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m, err := store.GetOrCreateMonitor(ctx, "job", "")
	require.NoError(t, err)

	open, err := store.UnresolvedOverdue(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, open)

	h := &MonitorOverdueHistory{MonitorID: m.ID, StartedAt: 1_700_000_000}
	require.NoError(t, store.CreateOverdue(ctx, h))

	open, err = store.UnresolvedOverdue(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, h.ID, open.ID)

	// The partial unique index rejects a second open incident.
	err = store.CreateOverdue(ctx, &MonitorOverdueHistory{MonitorID: m.ID, StartedAt: 1_700_000_100})
	assert.Error(t, err)

	// Resolve closes it; a second Resolve is a no-op.
	assert.True(t, open.Resolve(1_700_000_500))
	assert.False(t, open.Resolve(1_700_000_900))
	assert.Equal(t, int64(500), open.Duration)
	require.NoError(t, store.SaveOverdue(ctx, open))

	none, err := store.UnresolvedOverdue(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	// A resolved incident no longer blocks opening a new one.
	require.NoError(t, store.CreateOverdue(ctx, &MonitorOverdueHistory{MonitorID: m.ID, StartedAt: 1_700_001_000}))

	history, err := store.OverdueHistory(ctx, m.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1_700_001_000), history[0].StartedAt)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m, err := store.GetOrCreateMonitor(ctx, "job", "")
	require.NoError(t, err)

	group := MonitorGroup{Name: "nightly"}
	require.NoError(t, store.gdb.Create(&group).Error)
	m.GroupID = &group.ID
	require.NoError(t, store.SaveMonitor(ctx, m))

	slack := NotificationChannel{Name: "ops-slack", Type: "slack", Config: `{"webhook_url":"http://example.com"}`}
	email := NotificationChannel{Name: "oncall-mail", Type: "email", Config: `{"to":"ops@example.com"}`}
	require.NoError(t, store.gdb.Create(&slack).Error)
	require.NoError(t, store.gdb.Create(&email).Error)

	require.NoError(t, store.gdb.Create(&MonitorNotification{
		MonitorID: m.ID, ChannelID: slack.ID, NotifyOnFail: true, NotifyOnOverdue: true,
	}).Error)
	require.NoError(t, store.gdb.Create(&GroupNotification{
		GroupID: group.ID, ChannelID: email.ID, NotifyOnResolve: true,
	}).Error)

	subs, err := store.MonitorSubscriptions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, slack.ID, subs[0].Channel.ID)
	assert.True(t, subs[0].NotifyOnFail)
	assert.True(t, subs[0].NotifyOnOverdue)
	assert.False(t, subs[0].NotifyOnResolve)

	gsubs, err := store.GroupSubscriptions(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, gsubs, 1)
	assert.Equal(t, email.ID, gsubs[0].Channel.ID)
	assert.True(t, gsubs[0].NotifyOnResolve)
}

func TestNotificationHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m, err := store.GetOrCreateMonitor(ctx, "job", "")
	require.NoError(t, err)
	ch := NotificationChannel{Name: "log", Type: "log", Config: `{}`}
	require.NoError(t, store.gdb.Create(&ch).Error)

	require.NoError(t, store.AppendNotificationHistory(ctx, m.ID, ch.ID, "overdue", "Monitor 'job' is overdue by 5 minutes."))

	var count int64
	require.NoError(t, store.gdb.Model(&NotificationHistory{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
