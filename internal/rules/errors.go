package rules

import "fmt"

// ValidationError reports a rule that failed load-time checks.
type ValidationError struct {
	Index  int
	Rule   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("rules: rule #%d: %s", e.Index, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("rules: %s: %s: %v", e.Rule, e.Reason, e.Err)
	}
	return fmt.Sprintf("rules: %s: %s", e.Rule, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
