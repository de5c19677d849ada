package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24
	fileTimeLayout  = "20060102-150405.000"
)

// Manager runs periodic snapshots and archives the store on demand.
type Manager struct {
	store Snapshotter
	cfg   Config

	mu       sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewManager validates cfg. It returns nil when backups are disabled.
func NewManager(store Snapshotter, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("backup: nil snapshotter")
	}
	if strings.TrimSpace(store.DBPath()) == "" {
		return nil, fmt.Errorf("backup: db-path is empty (in-memory store)")
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("backup: backup-dir is required when backup is enabled")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("backup: create backup-dir: %w", err)
	}

	return &Manager{
		store: store,
		cfg:   cfg,
		done:  make(chan struct{}),
	}, nil
}

// Start takes a startup snapshot and then one every interval until Stop.
func (m *Manager) Start() {
	if _, err := m.Snapshot(context.Background(), ReasonPeriodic); err != nil {
		log.Printf("backup: startup snapshot failed: %v", err)
	}

	m.wg.Add(1)
	go m.loop()
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.Snapshot(context.Background(), ReasonPeriodic); err != nil {
				log.Printf("backup: periodic snapshot failed: %v", err)
			}
		case <-m.done:
			return
		}
	}
}

// Archive snapshots the store before its records are cleared.
func (m *Manager) Archive(ctx context.Context) error {
	_, err := m.Snapshot(ctx, ReasonPreClear)
	return err
}

// Snapshot writes one copy of the store and returns its path. Periodic
// snapshots beyond KeepLast are pruned, oldest first.
func (m *Manager) Snapshot(ctx context.Context, reason string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	name := fmt.Sprintf("logwatch-%s-%s.duckdb", reason, m.cfg.Now().UTC().Format(fileTimeLayout))
	path := filepath.Join(m.cfg.Dir, name)

	if err := m.store.SnapshotTo(path); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	log.Printf("backup: created %s snapshot %s", reason, path)

	if reason == ReasonPeriodic {
		if err := prune(m.cfg.Dir, ReasonPeriodic, m.cfg.KeepLast); err != nil {
			return path, fmt.Errorf("prune snapshots: %w", err)
		}
	}
	return path, nil
}

// Stop terminates the periodic loop. It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}

func prune(dir, reason string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "logwatch-"+reason+"-*.duckdb"))
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	// Names embed a fixed-width UTC timestamp, newest first after this sort.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	for _, old := range matches[keepLast:] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
