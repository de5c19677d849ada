package duckdb

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/tinytelemetry/logwatch/internal/logparse"
	"github.com/tinytelemetry/logwatch/internal/model"
)

// DefaultRecentLimit is used when RecentLogs is called with a non-positive limit.
const DefaultRecentLimit = model.DefaultLogsLimit

// MaxRecentLimit caps RecentLogs regardless of the requested limit.
const MaxRecentLimit = model.MaxLogsLimit

// maxQueryRows caps ExecuteQuery result sets.
const maxQueryRows = 1000

const logColumns = `id, timestamp, source, severity, message, raw_log, log_type, ip_address, username`

// dangerousKeywordPattern matches dangerous SQL keywords at word boundaries.
// This avoids false positives like "RESET" matching "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET|CHECKPOINT)\b`,
)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner, r *model.LogRecord) error {
	return row.Scan(&r.ID, &r.Timestamp, &r.Source, &r.Severity, &r.Message,
		&r.RawLog, &r.LogType, &r.IPAddress, &r.Username)
}

// AllLogs returns every stored record ordered by timestamp descending.
// Equal timestamps keep insertion order. The ordering is lexical on the
// stored timestamp text.
func (s *Store) AllLogs() ([]*model.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT "+logColumns+" FROM logs ORDER BY timestamp DESC, id ASC")
	if err != nil {
		return nil, storageErr("all logs", err)
	}
	defer rows.Close()

	records := make([]*model.LogRecord, 0)
	for rows.Next() {
		r := &model.LogRecord{}
		if err := scanLog(rows, r); err != nil {
			return nil, storageErr("all logs scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("all logs", err)
	}
	return records, nil
}

// RecentLogs returns up to limit records ordered by timestamp descending,
// optionally restricted to one severity. The severity filter is normalized,
// so "warn" selects WARNING records.
func (s *Store) RecentLogs(limit int, severity string) ([]model.LogRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	query := "SELECT " + logColumns + " FROM logs"
	var args []interface{}
	if sev := logparse.NormalizeSeverity(severity); sev != "" {
		query += " WHERE severity = ?"
		args = append(args, sev)
	}
	query += " ORDER BY timestamp DESC, id ASC LIMIT ?"
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("recent logs", err)
	}
	defer rows.Close()

	results := make([]model.LogRecord, 0)
	for rows.Next() {
		var r model.LogRecord
		if err := scanLog(rows, &r); err != nil {
			log.Printf("duckdb scan error (RecentLogs): %v", err)
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent logs", err)
	}
	return results, nil
}

// TotalLogCount returns the number of stored records.
func (s *Store) TotalLogCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&count); err != nil {
		return 0, storageErr("count logs", err)
	}
	return count, nil
}

// SeverityCounts returns record counts per severity.
func (s *Store) SeverityCounts() (map[string]int64, error) {
	return s.groupCounts("severity counts", "severity")
}

// LogTypeCounts returns record counts per log type.
func (s *Store) LogTypeCounts() (map[string]int64, error) {
	return s.groupCounts("log type counts", "log_type")
}

// groupCounts counts records grouped by column. column is a fixed identifier,
// never user input.
func (s *Store) groupCounts(op, column string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM logs GROUP BY %s", column, column))
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			log.Printf("duckdb scan error (%s): %v", op, err)
			continue
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return counts, nil
}

// Clear deletes every stored record. Ids are not reused afterwards.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM logs"); err != nil {
		return storageErr("clear logs", err)
	}
	return nil
}

// ExecuteQuery runs a read-only SQL query and returns results as maps.
// Only SELECT/WITH read queries are allowed; DDL/DML is rejected.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(query)

	if strings.Contains(trimmed, ";") {
		return nil, fmt.Errorf("query must not contain semicolons")
	}

	// Keywords hidden in comments must still be caught.
	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			log.Printf("duckdb scan error (ExecuteQuery): %v", err)
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable schema description for query authors.
func (s *Store) GetSchemaDescription() string {
	return `Table 'logs': id (BIGINT), timestamp (VARCHAR, as found in the line), ` +
		`source (VARCHAR), severity (VARCHAR: CRITICAL/ERROR/WARNING/INFO), ` +
		`message (VARCHAR), raw_log (VARCHAR), log_type (VARCHAR: auth/apache/windows/syslog), ` +
		`ip_address (VARCHAR), username (VARCHAR), created_at (TIMESTAMP).`
}
