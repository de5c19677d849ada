package pipeline

import "github.com/tinytelemetry/logwatch/internal/model"

// ComputeLiveStats derives the running summary from the stored record count
// and the alerts of the latest full detection run.
func ComputeLiveStats(totalLogs int64, alerts []model.Alert) model.LiveStats {
	s := model.LiveStats{TotalLogs: totalLogs, TotalAlerts: len(alerts)}
	for _, a := range alerts {
		switch a.Severity {
		case model.AlertCritical:
			s.CriticalAlerts++
		case model.AlertHigh:
			s.HighAlerts++
		case model.AlertMedium:
			s.MediumAlerts++
		}
	}
	return s
}
