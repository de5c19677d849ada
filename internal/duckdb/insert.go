package duckdb

import (
	"context"
	"fmt"

	"github.com/tinytelemetry/logwatch/internal/model"
)

const insertLogSQL = `INSERT INTO logs
	(timestamp, source, severity, message, raw_log, log_type, ip_address, username)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`

// InsertLogBatch appends records in a single transaction and sets each
// record's ID from the logs sequence. Either all records are stored or none.
func (s *Store) InsertLogBatch(records []*model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.insertBatchTx(ctx, records)
	if err != nil {
		return storageErr("insert logs", err)
	}
	for i, r := range records {
		r.ID = ids[i]
	}
	return nil
}

// insertBatchTx inserts records in one transaction and returns their ids.
// Ids are applied to the records only after commit.
func (s *Store) insertBatchTx(ctx context.Context, records []*model.LogRecord) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertLogSQL)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, len(records))
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("record %d is nil", i)
		}
		if err := stmt.QueryRowContext(
			ctx,
			r.Timestamp, r.Source, r.Severity, r.Message,
			r.RawLog, r.LogType, r.IPAddress, r.Username,
		).Scan(&ids[i]); err != nil {
			return nil, fmt.Errorf("record insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return ids, nil
}
