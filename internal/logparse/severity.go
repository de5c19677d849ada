package logparse

import (
	"strings"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// severityTiers lists keyword tiers from most to least severe.
// A line takes the severity of the first tier with any keyword present as a substring.
var severityTiers = []struct {
	severity string
	keywords []string
}{
	{model.SeverityCritical, []string{"critical", "fatal", "emergency"}},
	{model.SeverityError, []string{"error", "err", "failed", "failure"}},
	{model.SeverityWarning, []string{"warning", "warn"}},
}

// ExtractSeverityFromText classifies a raw line by case-insensitive keyword scan.
// Matching is by substring, so "interrupted" counts as ERROR via "err".
func ExtractSeverityFromText(line string) string {
	lower := strings.ToLower(line)
	for _, tier := range severityTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.severity
			}
		}
	}
	return model.SeverityInfo
}

// NormalizeSeverity maps user-supplied severity filters onto record severities.
// Returns "" for empty input so callers can treat it as "no filter".
// Unrecognized values come back upper-cased and match no record.
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "":
		return ""
	case "CRITICAL", "CRIT", "CRT", "FATAL", "FATL", "FTL", "EMERGENCY", "EMERG", "PANIC":
		return model.SeverityCritical
	case "ERROR", "ERR", "ERRO", "FAILED", "FAILURE":
		return model.SeverityError
	case "WARNING", "WARN", "WRN", "WRNG":
		return model.SeverityWarning
	case "INFO", "INFORMATION", "INF", "DEBUG", "TRACE":
		return model.SeverityInfo
	default:
		if len(normalized) >= 4 {
			switch normalized[:4] {
			case "CRIT", "FATA", "EMER":
				return model.SeverityCritical
			case "ERRO":
				return model.SeverityError
			case "WARN":
				return model.SeverityWarning
			}
		}
		return normalized
	}
}

// IsValidSeverity reports whether s is one of the four record severities.
func IsValidSeverity(s string) bool {
	switch s {
	case model.SeverityCritical, model.SeverityError, model.SeverityWarning, model.SeverityInfo:
		return true
	}
	return false
}
