package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/logwatch/internal/model"
)

func sampleData() *Data {
	alerts := make([]model.Alert, 0, 12)
	for i := 0; i < 12; i++ {
		alerts = append(alerts, model.Alert{
			ID:          i + 1,
			Type:        "brute_force",
			Severity:    model.AlertHigh,
			Description: "Possible brute force attack detected",
			Timestamp:   "2024-01-15 03:22:10",
			Source:      "sshd",
		})
	}
	return &Data{
		GeneratedAt: time.Date(2024, 1, 15, 9, 30, 5, 0, time.UTC),
		TotalLogs:   240,
		Alerts:      alerts,
		Stats:       model.Statistics{TotalAlerts: 12, HighCount: 12},
		Timeline: []model.TimelineEntry{
			{Time: "2024-01-15 03:22:10", Stage: "Brute Force", Severity: model.AlertHigh, Details: "Failed password for ründ from 203.0.113.5 port 22 ssh2"},
		},
	}
}

func TestFilename(t *testing.T) {
	got := Filename(time.Date(2024, 1, 15, 9, 30, 5, 0, time.UTC))
	if got != "LogWatch_Report_20240115_093005.pdf" {
		t.Errorf("Filename = %q", got)
	}
}

func TestGenerateProducesPDF(t *testing.T) {
	out, err := NewGenerator().Generate(sampleData())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:min(len(out), 8)])
	}
}

func TestGenerateEmpty(t *testing.T) {
	out, err := NewGenerator().Generate(nil)
	if err != nil {
		t.Fatalf("Generate(nil): %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := NewGenerator().WriteFile(dir, sampleData())
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !strings.HasSuffix(path, "LogWatch_Report_20240115_093005.pdf") {
		t.Errorf("path = %q", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat report: %v", err)
	}
	if info.Size() == 0 {
		t.Error("report file is empty")
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("truncateString short = %q", got)
	}
	if got := truncateString("ääääääääää", 6); got != "äää..." {
		t.Errorf("truncateString runes = %q", got)
	}
}
