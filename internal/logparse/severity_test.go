package logparse

import "testing"

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Standard forms
		{"CRITICAL", "CRITICAL"}, {"ERROR", "ERROR"}, {"WARNING", "WARNING"}, {"INFO", "INFO"},
		// Variants
		{"CRIT", "CRITICAL"}, {"FATAL", "CRITICAL"}, {"EMERG", "CRITICAL"}, {"PANIC", "CRITICAL"},
		{"ERR", "ERROR"}, {"ERRO", "ERROR"}, {"FAILED", "ERROR"},
		{"WARN", "WARNING"}, {"WRN", "WARNING"},
		{"DEBUG", "INFO"}, {"TRACE", "INFO"}, {"INF", "INFO"},
		// Case insensitive
		{"critical", "CRITICAL"}, {"error", "ERROR"}, {"warn", "WARNING"}, {"info", "INFO"},
		// Prefix matching
		{"CRITICAL_ALERT", "CRITICAL"}, {"ERROR_CODE_42", "ERROR"}, {"WARNING_LEVEL", "WARNING"},
		// Unknown values pass through upper-cased
		{"UNKNOWN", "UNKNOWN"}, {"foo", "FOO"}, {"bogus", "BOGUS"},
		// Empty means no filter
		{"", ""}, {"   ", ""},
		// Whitespace
		{"  ERROR  ", "ERROR"}, {"\tWARN\t", "WARNING"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeSeverity(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractSeverityFromText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"kernel: CRITICAL temperature threshold", "CRITICAL"},
		{"fatal: repository not found", "CRITICAL"},
		{"EMERGENCY shutdown initiated", "CRITICAL"},
		{"ERROR: connection refused", "ERROR"},
		{"Failed password for root from 10.0.0.5", "ERROR"},
		{"disk failure on /dev/sda", "ERROR"},
		{"[WARN] disk usage high", "WARNING"},
		{"Warning: deprecated API", "WARNING"},
		{"server started", "INFO"},
		{"", "INFO"},
		// substring semantics
		{"process interrupted by user", "ERROR"},
		{"user forewarned", "WARNING"},
		// highest tier wins
		{"fatal error while warning", "CRITICAL"},
		{"warning: request failed", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ExtractSeverityFromText(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractSeverityFromText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsValidSeverity(t *testing.T) {
	for _, s := range []string{"CRITICAL", "ERROR", "WARNING", "INFO"} {
		if !IsValidSeverity(s) {
			t.Errorf("IsValidSeverity(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "WARN", "HIGH", "info"} {
		if IsValidSeverity(s) {
			t.Errorf("IsValidSeverity(%q) = true, want false", s)
		}
	}
}
