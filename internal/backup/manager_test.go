package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeSnapshotter struct {
	dbPath string
	data   []byte
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fakeSnapshotter) DBPath() string { return f.dbPath }

func (f *fakeSnapshotter) SnapshotTo(dstPath string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(dstPath, f.data, 0644)
}

func (f *fakeSnapshotter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// steppingClock advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestNewManager_Disabled(t *testing.T) {
	t.Parallel()

	m, err := NewManager(&fakeSnapshotter{dbPath: "/tmp/logwatch.duckdb"}, Config{})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil manager when disabled")
	}
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(&fakeSnapshotter{dbPath: ""}, Config{Enabled: true, Dir: t.TempDir()}); err == nil {
		t.Fatal("expected error for in-memory store")
	}
	if _, err := NewManager(&fakeSnapshotter{dbPath: "/tmp/logwatch.duckdb"}, Config{Enabled: true}); err == nil {
		t.Fatal("expected error for empty backup dir")
	}
	if _, err := NewManager(nil, Config{Enabled: true, Dir: t.TempDir()}); err == nil {
		t.Fatal("expected error for nil snapshotter")
	}
}

func TestSnapshot_PrunesPeriodicOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(&fakeSnapshotter{dbPath: "/tmp/logwatch.duckdb", data: []byte("snapshot")}, Config{
		Enabled:  true,
		Dir:      dir,
		KeepLast: 2,
		Now:      steppingClock(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx := context.Background()
	if err := m.Archive(ctx); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	var newest string
	for i := 0; i < 3; i++ {
		path, err := m.Snapshot(ctx, ReasonPeriodic)
		if err != nil {
			t.Fatalf("Snapshot #%d: %v", i+1, err)
		}
		newest = path
	}

	periodic, _ := filepath.Glob(filepath.Join(dir, "logwatch-periodic-*.duckdb"))
	if len(periodic) != 2 {
		t.Fatalf("expected 2 periodic snapshots after prune, got %d", len(periodic))
	}
	if _, err := os.Stat(newest); err != nil {
		t.Fatalf("newest snapshot pruned: %v", err)
	}
	archives, _ := filepath.Glob(filepath.Join(dir, "logwatch-preclear-*.duckdb"))
	if len(archives) != 1 {
		t.Fatalf("expected pre-clear archive to survive prune, got %d", len(archives))
	}
}

func TestArchive_PropagatesFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	m, err := NewManager(&fakeSnapshotter{dbPath: "/tmp/logwatch.duckdb", err: boom}, Config{Enabled: true, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Archive(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Archive err = %v, want %v", err, boom)
	}
}

func TestArchive_CancelledContext(t *testing.T) {
	t.Parallel()

	store := &fakeSnapshotter{dbPath: "/tmp/logwatch.duckdb"}
	m, err := NewManager(store, Config{Enabled: true, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Archive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Archive err = %v, want context.Canceled", err)
	}
	if store.callCount() != 0 {
		t.Fatal("snapshot taken despite cancelled context")
	}
}

func TestStartAndStop(t *testing.T) {
	t.Parallel()

	store := &fakeSnapshotter{dbPath: "/tmp/logwatch.duckdb", data: []byte("x")}
	m, err := NewManager(store, Config{
		Enabled:  true,
		Dir:      t.TempDir(),
		Interval: 10 * time.Millisecond,
		Now:      steppingClock(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.Start()
	deadline := time.Now().Add(2 * time.Second)
	for store.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if store.callCount() < 3 {
		t.Fatalf("expected startup and periodic snapshots, got %d", store.callCount())
	}
	after := store.callCount()
	time.Sleep(30 * time.Millisecond)
	if store.callCount() != after {
		t.Fatal("snapshots continued after Stop")
	}
}
