// Package backup keeps point-in-time copies of the log store: periodic
// snapshots pruned to a fixed count, and an archive taken before every clear.
package backup

import "time"

// Config controls store snapshots.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Dir      string
	// KeepLast bounds periodic snapshots. Pre-clear archives are never pruned.
	KeepLast int
	Now      func() time.Time
}

// Snapshotter is the store contract the manager needs.
type Snapshotter interface {
	DBPath() string
	SnapshotTo(dstPath string) error
}

// Snapshot reasons, embedded in file names.
const (
	ReasonPeriodic = "periodic"
	ReasonPreClear = "preclear"
)
