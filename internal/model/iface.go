package model

import "context"

// LogWriter provides append-oriented write operations for normalized logs.
type LogWriter interface {
	InsertLogBatch(records []*LogRecord) error
}

// LogQuerier provides read-only queries on stored logs.
type LogQuerier interface {
	AllLogs() ([]*LogRecord, error)
	RecentLogs(limit int, severity string) ([]LogRecord, error)
	TotalLogCount() (int64, error)
	SeverityCounts() (map[string]int64, error)
	LogTypeCounts() (map[string]int64, error)
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
}

// LogStore is the full storage contract used by the ingestion coordinator.
type LogStore interface {
	LogWriter
	LogQuerier
	Clear() error
}

// ReadAPI is the read contract for read surfaces (HTTP and socket RPC).
type ReadAPI interface {
	Analyze(ctx context.Context) (*Analysis, error)
	Timeline(ctx context.Context) ([]TimelineEntry, error)
	Stats(ctx context.Context) (LiveStats, error)
	RecentLogs(ctx context.Context, limit int, severity string) ([]LogRecord, error)
	TotalLogCount(ctx context.Context) (int64, error)
}
