package ingest

import (
	"strings"
	"time"

	"github.com/tinytelemetry/logwatch/internal/logparse"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/timestamp"
)

// Normalizer turns raw text into LogRecords. It never fails: a line that
// matches nothing still yields a record with fallback fields.
type Normalizer struct {
	timestamps *timestamp.Parser
}

// NewNormalizer creates a normalizer using the wall clock for missing timestamps.
func NewNormalizer() *Normalizer {
	return &Normalizer{timestamps: timestamp.NewParser()}
}

// NewNormalizerWithClock creates a normalizer with an injected clock.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{timestamps: timestamp.NewParserWithClock(now)}
}

// Parse splits content into lines and normalizes each non-blank one.
// Records are returned in input order.
func (n *Normalizer) Parse(content, filename string) []*model.LogRecord {
	return n.ParseLines(SplitLines(content), filename)
}

// ParseLines normalizes pre-split lines, skipping blank ones.
func (n *Normalizer) ParseLines(lines []string, filename string) []*model.LogRecord {
	records := make([]*model.LogRecord, 0, len(lines))
	for _, line := range lines {
		line = cleanLine(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, n.ParseLine(line, filename))
	}
	return records
}

// ParseLine extracts all fields from a single line. The full line is kept
// as both message and raw log.
func (n *Normalizer) ParseLine(line, filename string) *model.LogRecord {
	return &model.LogRecord{
		Timestamp: n.timestamps.Extract(line),
		Source:    ExtractSource(line, filename),
		Severity:  logparse.ExtractSeverityFromText(line),
		Message:   line,
		RawLog:    line,
		LogType:   DetectLogType(line),
		IPAddress: ExtractIP(line),
		Username:  ExtractUsername(line),
	}
}

// SplitLines splits content on newlines after trimming surrounding whitespace.
// Invalid UTF-8 is dropped and CRLF endings are reduced to LF.
func SplitLines(content string) []string {
	content = strings.TrimSpace(strings.ToValidUTF8(content, ""))
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func cleanLine(line string) string {
	return strings.TrimSuffix(strings.ToValidUTF8(line, ""), "\r")
}
