package detect

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/rules"
)

const (
	// TimelineLimit caps the number of timeline entries.
	TimelineLimit = 10
	// DetailsLimit caps timeline details, in characters.
	DetailsLimit = 100
)

var stageLabels = map[string]string{
	rules.PortScan:            "🔍 Reconnaissance: Attacker scanned the network for vulnerabilities",
	rules.BruteForce:          "🔨 Initial Access: Attempted to breach account security",
	rules.PrivilegeEscalation: "⚠️ Privilege Escalation: Gained elevated system access",
	rules.FileDeletion:        "💀 Impact: Attempted to delete critical files",
	rules.DataExfiltration:    "📤 Exfiltration: Attempted to steal data",
	rules.MalwareIndicator:    "☣️ Malware: Malicious software detected",
}

var titleCaser = cases.Title(language.English)

// Timeline orders alerts by timestamp (string comparison, stable) and maps
// the earliest ones to attack stages.
func Timeline(alerts []model.Alert) []model.TimelineEntry {
	sorted := make([]model.Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	if len(sorted) > TimelineLimit {
		sorted = sorted[:TimelineLimit]
	}

	entries := make([]model.TimelineEntry, 0, len(sorted))
	for _, a := range sorted {
		entries = append(entries, model.TimelineEntry{
			Time:        a.Timestamp,
			Stage:       StageLabel(a.Type),
			Description: a.Description,
			Severity:    a.Severity,
			Details:     truncate(a.Details, DetailsLimit),
		})
	}
	return entries
}

// StageLabel returns the narrative label for an alert type.
func StageLabel(alertType string) string {
	if label, ok := stageLabels[alertType]; ok {
		return label
	}
	return "⚡ " + titleCaser.String(strings.ReplaceAll(alertType, "_", " "))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
