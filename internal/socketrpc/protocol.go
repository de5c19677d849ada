package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes model.ReadAPI over a Unix domain socket.
// Each method maps 1:1 to the ReadAPI interface.
//
//   Method            Params                              Result
//   ──────────────    ──────────────────────────────────  ─────────────────
//   Analyze           (none)                              Analysis
//   Timeline          (none)                              []TimelineEntry
//   Stats             (none)                              LiveStats
//   RecentLogs        {Limit: int, Severity: string}      []LogRecord
//   TotalLogCount     (none)                              int64
//
// RecentLogs accepts empty or null params; Limit <= 0 means the default limit
// and an empty Severity means every severity. Negative limits and limits above
// model.MaxLogsLimit are invalid params.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (detection or storage failure)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/logwatch/logwatch.sock, falling back to
// ~/.local/state/logwatch/logwatch.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "logwatch", "logwatch.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/logwatch.sock"
	}
	return filepath.Join(home, ".local", "state", "logwatch", "logwatch.sock")
}
