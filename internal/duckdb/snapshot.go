package duckdb

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// ErrInMemoryStore is returned when a file operation targets an in-memory store.
var ErrInMemoryStore = errors.New("duckdb: store is in-memory")

// SnapshotTo checkpoints the database and copies its file to dstPath.
// The copy is written to a temp file and renamed into place.
func (s *Store) SnapshotTo(dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return storageErr("create snapshot dir", err)
	}

	// Writers are held off only for the checkpoint, not the copy.
	s.mu.Lock()
	if s.dbPath == "" {
		s.mu.Unlock()
		return ErrInMemoryStore
	}
	ctx, cancel := s.queryCtx()
	_, err := s.db.ExecContext(ctx, "CHECKPOINT")
	cancel()
	dbPath := s.dbPath
	s.mu.Unlock()
	if err != nil {
		return storageErr("checkpoint", err)
	}

	if err := copyFile(dbPath, dstPath); err != nil {
		return storageErr("copy snapshot", err)
	}
	return nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := dstPath + ".tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dstPath)
}
