package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronwatch/internal/db"
)

func TestAPILogParser(t *testing.T) {
	ctx := context.Background()
	store := newIngestStore(t)
	dir := t.TempDir()

	content := `[2025-04-12 19:55:13] [INFO] Otrzymano ping 'run' dla monitora 'ping-dc3307' (czas: 0s)
[2025-04-12 19:55:20] [ERROR] Brak wymaganego pola: monitor
[2025-04-12 19:58:44] [INFO] Otrzymano ping 'complete' dla monitora 'ping-dc3307' (czas: 3.5s) [Tagi: db, nightly] [Źródło: cron] [Strefa: Europe/Warsaw] [Cron: */5 * * * *]
[2025-04-12 20:01:02] [INFO] Otrzymano ping 'fail' dla monitora 'ping-dc3307' (czas: 0.2s)
`
	path := writeLog(t, dir, "api.log", content)
	parser := NewAPILogParser(store, path, NewWatermark(filepath.Join(dir, "api.watermark")), nil)

	n, err := parser.Parse(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	monitor, err := store.FindMonitorByName(ctx, "ping-dc3307")
	require.NoError(t, err)
	require.NotNil(t, monitor)

	pings, err := store.RecentPings(ctx, monitor.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, pings, 3)

	// Newest first: fail, complete, run.
	fail, complete, run := pings[0], pings[1], pings[2]

	assert.Equal(t, db.StateFail, fail.State)
	require.NotNil(t, fail.ExitCode)
	assert.Equal(t, 1, *fail.ExitCode)
	// Duration applies to completed runs only.
	assert.Nil(t, fail.Duration)

	assert.Equal(t, db.StateComplete, complete.State)
	require.NotNil(t, complete.Duration)
	assert.Equal(t, 3500.0, *complete.Duration)
	assert.Equal(t, "cron", complete.RunSource)
	assert.Equal(t, "Europe/Warsaw", complete.Timezone)
	assert.Equal(t, "*/5 * * * *", complete.CronSchedule)

	assert.Equal(t, db.StateRun, run.State)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 0, *run.ExitCode)
	assert.Equal(t, "api-log", run.Host)
	assert.Equal(t, "127.0.0.1", run.IP)

	// Second incremental run is a no-op.
	n, err = parser.Parse(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAPIUniqueIDDeterministic(t *testing.T) {
	a := apiUniqueID("2025-04-12 19:55:13", "backup", "run")
	b := apiUniqueID("2025-04-12 19:55:13", "backup", "run")
	c := apiUniqueID("2025-04-12 19:55:13", "backup", "complete")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestAPILogParserMalformedPingLine(t *testing.T) {
	ctx := context.Background()
	store := newIngestStore(t)
	dir := t.TempDir()

	// A ping line missing the duration block does not match the template.
	path := writeLog(t, dir, "api.log", `[2025-04-12 19:55:13] [INFO] Otrzymano ping 'run' dla monitora 'x'
`)
	parser := NewAPILogParser(store, path, NewWatermark(filepath.Join(dir, "w")), nil)
	n, err := parser.Parse(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
