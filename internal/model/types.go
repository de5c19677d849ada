package model

// LogRecord is one normalized log line.
// It is the canonical type for storage, detection, transport (socket RPC), and display.
type LogRecord struct {
	ID        int64  `json:"id"` // assigned by the store; 0 before persistence
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Severity  string `json:"severity"` // CRITICAL/ERROR/WARNING/INFO
	Message   string `json:"message"`
	RawLog    string `json:"raw_log"`
	LogType   string `json:"log_type"` // auth/apache/windows/syslog
	IPAddress string `json:"ip_address"`
	Username  string `json:"username"`
}

// Record severities.
const (
	SeverityCritical = "CRITICAL"
	SeverityError    = "ERROR"
	SeverityWarning  = "WARNING"
	SeverityInfo     = "INFO"
)

// Log types assigned by the normalizer.
const (
	LogTypeAuth    = "auth"
	LogTypeApache  = "apache"
	LogTypeWindows = "windows"
	LogTypeSyslog  = "syslog"
)

// Alert severities. Only HIGH, CRITICAL and MEDIUM are produced by the built-in rules.
const (
	AlertCritical = "CRITICAL"
	AlertHigh     = "HIGH"
	AlertMedium   = "MEDIUM"
	AlertLow      = "LOW"
)

// Alert is a detection emitted by one rule for one record.
type Alert struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	Source      string `json:"source"`
	IPAddress   string `json:"ip_address"`
	Username    string `json:"username"`
	Details     string `json:"details"`
	LogID       int64  `json:"log_id"`
}

// Statistics aggregates a set of alerts.
type Statistics struct {
	TotalAlerts   int            `json:"total_alerts"`
	BySeverity    map[string]int `json:"by_severity"`
	ByType        map[string]int `json:"by_type"`
	CriticalCount int            `json:"critical_count"`
	HighCount     int            `json:"high_count"`
	MediumCount   int            `json:"medium_count"`
}

// TimelineEntry is one step of the attack narrative.
type TimelineEntry struct {
	Time        string `json:"time"`
	Stage       string `json:"stage"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Details     string `json:"details"`
}

// LiveStats is the running summary pushed to live subscribers after each ingest.
type LiveStats struct {
	TotalLogs      int64 `json:"total_logs"`
	TotalAlerts    int   `json:"total_alerts"`
	CriticalAlerts int   `json:"critical_alerts"`
	HighAlerts     int   `json:"high_alerts"`
	MediumAlerts   int   `json:"medium_alerts"`
}

// Analysis is the full-corpus detection result served to read surfaces.
type Analysis struct {
	Alerts    []Alert    `json:"alerts"`
	Stats     Statistics `json:"stats"`
	TotalLogs int64      `json:"total_logs"`
}
