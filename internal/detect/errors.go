package detect

import "fmt"

// ValidationError reports a malformed detector input.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("detect: record %d: %s", e.Index, e.Reason)
}
