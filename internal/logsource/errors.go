package logsource

import (
	"errors"
	"fmt"
)

// ErrTruncated reports a file that shrank below the read offset.
var ErrTruncated = errors.New("file truncated")

// TransientReadError is a recoverable failure reading a watched file: it
// was truncated, rotated or removed between notification and read. The
// watcher keeps running and retries on the next notification.
type TransientReadError struct {
	Path string
	Op   string
	Err  error
}

func (e *TransientReadError) Error() string {
	return fmt.Sprintf("logsource: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientReadError) Unwrap() error {
	return e.Err
}
