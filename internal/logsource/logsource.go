// Package logsource provides the live inputs feeding the ingest pipeline.
package logsource

import "github.com/tinytelemetry/logwatch/internal/model"

// LogSource is a unified interface for all log input sources (file, TCP, stdin).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of envelopes
	Stop()                              // graceful shutdown
	Name() string                       // "file", "tcp", "stdin"
}
