package ingest

import (
	"regexp"
	"strings"

	"github.com/tinytelemetry/logwatch/internal/model"
)

var (
	// apacheMethodRe is deliberately unanchored: any occurrence of the verbs counts.
	apacheMethodRe = regexp.MustCompile(`GET|POST|PUT|DELETE`)
	isoDateRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	sourceRe       = regexp.MustCompile(`\b([a-zA-Z0-9\-]+)\b`)
	ipv4Re         = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	usernamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)user[:\s]+(\S+)`),
		regexp.MustCompile(`(?i)for\s+(\S+)\s+from`),
		regexp.MustCompile(`(?i)login:\s+(\S+)`),
	}
)

// DetectLogType classifies a line as auth, apache, windows or syslog.
func DetectLogType(line string) string {
	switch {
	case strings.Contains(line, "Failed password"), strings.Contains(line, "Accepted password"):
		return model.LogTypeAuth
	case apacheMethodRe.MatchString(line):
		return model.LogTypeApache
	case isoDateRe.MatchString(line):
		return model.LogTypeWindows
	default:
		return model.LogTypeSyslog
	}
}

// ExtractSource returns the first alphanumeric/hyphen token of the line, or
// fallback when the line has none.
func ExtractSource(line, fallback string) string {
	if m := sourceRe.FindStringSubmatch(line); len(m) > 1 {
		return m[1]
	}
	return fallback
}

// ExtractIP returns the first dotted-quad in the line. Octets are not range-checked.
func ExtractIP(line string) string {
	return ipv4Re.FindString(line)
}

// ExtractUsername returns the first username captured by the ordered patterns.
func ExtractUsername(line string) string {
	for _, re := range usernamePatterns {
		if m := re.FindStringSubmatch(line); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
