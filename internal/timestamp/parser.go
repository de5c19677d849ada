package timestamp

import (
	"regexp"
	"time"
)

// Layout is the format used for fallback timestamps.
const Layout = "2006-01-02 15:04:05"

// Format names reported in Result.
const (
	FormatWindows = "windows"
	FormatSyslog  = "syslog"
	FormatApache  = "apache"
)

type pattern struct {
	name string
	re   *regexp.Regexp
}

// patterns are tried in order; the first match wins.
var patterns = []pattern{
	{FormatWindows, regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`)},
	{FormatSyslog, regexp.MustCompile(`\w+\s+\d+\s+\d+:\d+:\d+`)},
	{FormatApache, regexp.MustCompile(`\d{2}/\w+/\d{4}:\d{2}:\d{2}:\d{2}`)},
}

// Result holds the outcome of a text scan.
type Result struct {
	Timestamp string
	Format    string
	Found     bool
}

// Parser extracts timestamps embedded in log text.
// The matched text is kept verbatim; no reformatting is applied.
type Parser struct {
	now func() time.Time
}

// NewParser creates a parser using the wall clock for fallbacks.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// NewParserWithClock creates a parser with an injected clock.
func NewParserWithClock(now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{now: now}
}

// ParseFromText returns the first timestamp found in text.
func (p *Parser) ParseFromText(text string) Result {
	for _, pt := range patterns {
		if m := pt.re.FindString(text); m != "" {
			return Result{Timestamp: m, Format: pt.name, Found: true}
		}
	}
	return Result{}
}

// Extract returns the embedded timestamp, or the current time formatted with Layout.
func (p *Parser) Extract(text string) string {
	if r := p.ParseFromText(text); r.Found {
		return r.Timestamp
	}
	return p.now().Format(Layout)
}
