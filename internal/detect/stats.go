package detect

import "github.com/tinytelemetry/logwatch/internal/model"

// Statistics aggregates alerts by severity and type.
func Statistics(alerts []model.Alert) model.Statistics {
	st := model.Statistics{
		TotalAlerts: len(alerts),
		BySeverity:  make(map[string]int),
		ByType:      make(map[string]int),
	}
	for _, a := range alerts {
		st.BySeverity[a.Severity]++
		st.ByType[a.Type]++
	}
	st.CriticalCount = st.BySeverity[model.AlertCritical]
	st.HighCount = st.BySeverity[model.AlertHigh]
	st.MediumCount = st.BySeverity[model.AlertMedium]
	return st
}
