package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/logwatch/internal/duckdb"
	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/model"
)

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type event struct {
	name    string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event
}

func (p *recordingPublisher) Publish(name string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{name, payload})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.name
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func newTestStore(t *testing.T) *duckdb.Store {
	t.Helper()
	store, err := duckdb.NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestCoordinator(t *testing.T, store model.LogStore, opts Options) *Coordinator {
	t.Helper()
	if opts.Normalizer == nil {
		opts.Normalizer = ingest.NewNormalizerWithClock(func() time.Time { return fixedNow })
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return New(store, opts)
}

func failedLogins(from, n int) []string {
	lines := make([]string, 0, n)
	for i := from; i < from+n; i++ {
		lines = append(lines, fmt.Sprintf("Jan 15 10:22:%02d server sshd[411]: Failed password for root from 203.0.113.5 port 22 ssh2", i))
	}
	return lines
}

func envelope(lines ...string) model.IngestEnvelope {
	return model.IngestEnvelope{Source: model.OriginUpload, Filename: "auth.log", Lines: lines}
}

func TestIngest_BruteForceCrossesThresholdAcrossBatches(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestCoordinator(t, newTestStore(t), Options{Publisher: pub})
	ctx := context.Background()

	res, err := c.Ingest(ctx, envelope(failedLogins(10, 4)...))
	require.NoError(t, err)
	assert.Len(t, res.Records, 4)
	assert.Empty(t, res.NewAlerts)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, model.LiveStats{TotalLogs: 4}, res.Stats)
	assert.Equal(t, []string{EventNewLogs, EventStatsUpdate}, pub.names())
	for i, r := range res.Records {
		assert.Equal(t, int64(i+1), r.ID)
	}

	pub.reset()
	res, err = c.Ingest(ctx, envelope(failedLogins(14, 2)...))
	require.NoError(t, err)
	require.Len(t, res.NewAlerts, 2)
	for _, a := range res.NewAlerts {
		assert.Equal(t, "brute_force", a.Type)
		assert.Equal(t, model.AlertHigh, a.Severity)
		assert.Equal(t, "203.0.113.5", a.IPAddress)
	}
	assert.Equal(t, model.LiveStats{TotalLogs: 6, TotalAlerts: 2, HighAlerts: 2}, res.Stats)
	assert.Equal(t, []string{EventNewLogs, EventNewAlerts, EventStatsUpdate}, pub.names())

	pub.reset()
	res, err = c.Ingest(ctx, envelope("Jan 15 10:23:00 server sudo: alice : TTY=pts/0 ; COMMAND=/bin/bash"))
	require.NoError(t, err)
	require.Len(t, res.NewAlerts, 1)
	assert.Equal(t, "privilege_escalation", res.NewAlerts[0].Type)
	assert.Equal(t, model.LiveStats{TotalLogs: 7, TotalAlerts: 3, CriticalAlerts: 1, HighAlerts: 2}, res.Stats)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Stats, stats)
}

func TestIngest_PublishesStoredRecords(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestCoordinator(t, newTestStore(t), Options{Publisher: pub})

	_, err := c.Ingest(context.Background(), envelope("kernel: eth0 link up"))
	require.NoError(t, err)

	require.NotEmpty(t, pub.events)
	logs, ok := pub.events[0].payload.([]model.LogRecord)
	require.True(t, ok, "new_logs payload is %T", pub.events[0].payload)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(1), logs[0].ID)
	assert.Equal(t, "kernel", logs[0].Source)
	assert.Equal(t, "2024-01-15 12:00:00", logs[0].Timestamp)
}

func TestIngest_BlankEnvelopeIsNoop(t *testing.T) {
	pub := &recordingPublisher{}
	store := newTestStore(t)
	c := newTestCoordinator(t, store, Options{Publisher: pub})

	res, err := c.Ingest(context.Background(), envelope("", "   ", "\t"))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Empty(t, pub.names())

	count, err := store.TotalLogCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngest_CancelledContext(t *testing.T) {
	c := newTestCoordinator(t, newTestStore(t), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Ingest(ctx, envelope("kernel: eth0 link up"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrime_SuppressesAlertsFoundBeforeRestart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newTestCoordinator(t, store, Options{})
	_, err := first.Ingest(ctx, envelope("Jan 15 10:00:00 host kernel: trojan signature found"))
	require.NoError(t, err)

	pub := &recordingPublisher{}
	restarted := newTestCoordinator(t, store, Options{Publisher: pub})
	require.NoError(t, restarted.Prime(ctx))

	stats, err := restarted.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CriticalAlerts)

	res, err := restarted.Ingest(ctx, envelope("Jan 15 10:05:00 host kernel: eth0 link up"))
	require.NoError(t, err)
	assert.Empty(t, res.NewAlerts)
	assert.NotContains(t, pub.names(), EventNewAlerts)
}

func TestAnalyzeAndTimeline(t *testing.T) {
	c := newTestCoordinator(t, newTestStore(t), Options{})
	ctx := context.Background()

	_, err := c.Ingest(ctx, envelope(
		"Jan 15 10:00:00 host kernel: port scan from 198.51.100.7",
		"Jan 15 10:01:00 host kernel: ransomware note written",
	))
	require.NoError(t, err)

	analysis, err := c.Analyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), analysis.TotalLogs)
	require.Len(t, analysis.Alerts, 2)
	assert.Equal(t, 2, analysis.Stats.TotalAlerts)
	assert.Equal(t, 1, analysis.Stats.CriticalCount)
	assert.Equal(t, 1, analysis.Stats.HighCount)

	timeline, err := c.Timeline(ctx)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, "Jan 15 10:00:00", timeline[0].Time)
	assert.Contains(t, timeline[0].Stage, "Reconnaissance")
}

func TestRecentLogsAndCount(t *testing.T) {
	c := newTestCoordinator(t, newTestStore(t), Options{})
	ctx := context.Background()

	_, err := c.Ingest(ctx, envelope(
		"Jan 15 10:00:00 host app: ERROR disk full",
		"Jan 15 10:00:01 host app: started",
	))
	require.NoError(t, err)

	logs, err := c.RecentLogs(ctx, 10, "error")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.SeverityError, logs[0].Severity)

	count, err := c.TotalLogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestClear_ResetsLiveState(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestCoordinator(t, newTestStore(t), Options{Publisher: pub})
	ctx := context.Background()

	_, err := c.Ingest(ctx, envelope("Jan 15 10:00:00 host kernel: malware quarantined"))
	require.NoError(t, err)

	pub.reset()
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, []string{EventStatsUpdate}, pub.names())

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.LiveStats{}, stats)

	res, err := c.Ingest(ctx, envelope("Jan 15 10:00:00 host kernel: malware quarantined"))
	require.NoError(t, err)
	require.Len(t, res.NewAlerts, 1, "same alert after clear is new again")
	assert.Equal(t, int64(2), res.Records[0].ID)
}

type fakeArchiver struct {
	err   error
	calls int
}

func (f *fakeArchiver) Archive(context.Context) error {
	f.calls++
	return f.err
}

func TestClear_ArchivesFirst(t *testing.T) {
	arch := &fakeArchiver{}
	store := newTestStore(t)
	c := newTestCoordinator(t, store, Options{Archiver: arch})
	ctx := context.Background()

	_, err := c.Ingest(ctx, envelope("Jan 15 10:00:00 host kernel: malware quarantined"))
	require.NoError(t, err)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 1, arch.calls)

	total, err := c.TotalLogCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestClear_ArchiveFailureKeepsRecords(t *testing.T) {
	arch := &fakeArchiver{err: errors.New("disk full")}
	c := newTestCoordinator(t, newTestStore(t), Options{Archiver: arch})
	ctx := context.Background()

	_, err := c.Ingest(ctx, envelope("Jan 15 10:00:00 host kernel: malware quarantined"))
	require.NoError(t, err)

	err = c.Clear(ctx)
	require.ErrorIs(t, err, arch.err)

	total, err := c.TotalLogCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CriticalAlerts)
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	c := newTestCoordinator(t, newTestStore(t), Options{ReportDir: dir})
	ctx := context.Background()

	_, err := c.Ingest(ctx, envelope("Jan 15 10:00:00 host kernel: exfiltration to 198.51.100.9"))
	require.NoError(t, err)

	rep, err := c.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LogWatch_Report_20240115_120000.pdf", rep.Filename)
	assert.True(t, bytes.HasPrefix(rep.Data, []byte("%PDF-")))
	require.NotEmpty(t, rep.Path)

	_, err = os.Stat(rep.Path)
	assert.NoError(t, err)
}

func TestHandleEnvelopeBehindBatcher(t *testing.T) {
	store := newTestStore(t)
	c := newTestCoordinator(t, store, Options{})

	b := ingest.NewBatcher(c, ingest.BatcherConfig{BatchSize: 3, FlushInterval: time.Hour})
	for _, line := range failedLogins(0, 3) {
		b.Add(model.IngestEnvelope{Source: model.OriginTCP, Lines: []string{line}})
	}
	b.Stop()

	count, err := store.TotalLogCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

type failingStore struct {
	model.LogStore
	err error
}

func (f *failingStore) InsertLogBatch([]*model.LogRecord) error { return f.err }
func (f *failingStore) AllLogs() ([]*model.LogRecord, error)    { return nil, nil }

func TestIngest_StoreErrorIsWrapped(t *testing.T) {
	storeErr := &duckdb.StorageError{Op: "insert logs", Err: errors.New("disk full")}
	pub := &recordingPublisher{}
	c := newTestCoordinator(t, &failingStore{err: storeErr}, Options{Publisher: pub})

	_, err := c.Ingest(context.Background(), envelope("kernel: eth0 link up"))
	require.Error(t, err)

	var serr *duckdb.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insert logs", serr.Op)
	assert.Empty(t, pub.names())
}
