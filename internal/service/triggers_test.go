package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smpawlowski/covid19/internal/domain"
)

func TestFileWatchTriggersRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	inDir, outDir := t.TempDir(), t.TempDir()
	cfg := testConfig(t, inDir, outDir)
	cfg.Service.WatchDebounce = "50ms"
	for i := range cfg.Datasets {
		cfg.Datasets[i].Schedule = ""
	}
	cfg.Datasets[1].Watch = true
	svc, emitter := newTestService(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartTriggers(ctx))

	writeFile(t, inDir, "ch.csv", openZHCSV+"2020-03-03,,BE,,9,,,,1\n")

	require.Eventually(t, func() bool {
		return len(emitter.Named(EventPublished)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	last, ok := svc.runs.LastRun("ch")
	require.True(t, ok)
	assert.Equal(t, domain.TriggerFileWatch, last.Trigger)
	assert.Equal(t, 5, last.RowsRead)

	_, err := os.Stat(filepath.Join(outDir, "ch.html"))
	assert.NoError(t, err)

	svc.Stop()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	svc.WaitRunning(waitCtx)
}

func TestCronTriggersRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t, t.TempDir(), t.TempDir())
	cfg.Datasets[0].Schedule = ""
	cfg.Datasets[1].Schedule = "@every 1s"
	svc, _ := newTestService(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartTriggers(ctx))

	require.Eventually(t, func() bool {
		last, ok := svc.runs.LastRun("ch")
		return ok && last.Status == domain.RunSuccess
	}, 5*time.Second, 50*time.Millisecond)

	last, _ := svc.runs.LastRun("ch")
	assert.Equal(t, domain.TriggerSchedule, last.Trigger)
	_, ok := svc.runs.LastRun("global")
	assert.False(t, ok)

	svc.Stop()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	svc.WaitRunning(waitCtx)
}

func TestStopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := NewReportService(testConfig(t, t.TempDir(), t.TempDir()), Options{})
	svc.Stop()
	svc.Stop()
}

func TestRunningGuard(t *testing.T) {
	var g runningGuard

	require.True(t, g.TryLock("global"))
	assert.False(t, g.TryLock("global"))
	require.True(t, g.TryLock("ch"))
	g.Unlock("global")
	g.Unlock("ch")
	assert.True(t, g.TryLock("global"))
	g.Unlock("global")
}

func TestRunningGuardWaitAll(t *testing.T) {
	var g runningGuard
	require.True(t, g.TryLock("ch"))

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()
	time.AfterFunc(20*time.Millisecond, func() { g.Unlock("ch") })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

func TestMemoryRunLogStore(t *testing.T) {
	s := NewMemoryRunLogStore()
	for i := range maxRunLogs + 5 {
		l := &domain.RunLog{Dataset: "ch", Status: domain.RunRunning, RowsRead: i}
		require.NoError(t, s.CreateRunLog(l))
		l.Status = domain.RunSuccess
		require.NoError(t, s.UpdateRunLog(l))
	}

	logs, err := s.ListRunLogs("ch", 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, maxRunLogs+4, logs[0].RowsRead)
	assert.Equal(t, domain.RunSuccess, logs[0].Status)

	all, err := s.ListRunLogs("ch", 0)
	require.NoError(t, err)
	assert.Len(t, all, maxRunLogs)

	assert.Error(t, s.UpdateRunLog(&domain.RunLog{ID: "missing", Dataset: "ch"}))
	_, ok := s.LastRun("global")
	assert.False(t, ok)
}
