package tui

import (
	"time"

	"github.com/tinytelemetry/logwatch/internal/model"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
)

// Section represents the focusable list at the bottom of the dashboard.
type Section int

const (
	SectionAlerts   Section = iota // detected alerts
	SectionTimeline                // attack narrative
	SectionLogs                    // recent records
	sectionCount
)

func (s Section) String() string {
	switch s {
	case SectionAlerts:
		return "Alerts"
	case SectionTimeline:
		return "Timeline"
	case SectionLogs:
		return "Logs"
	default:
		return "?"
	}
}

// severityCycle is the order the log severity filter steps through. "" shows all.
var severityCycle = []string{"", model.SeverityCritical, model.SeverityError, model.SeverityWarning, model.SeverityInfo}

// Config holds dashboard settings.
type Config struct {
	UpdateInterval time.Duration
	LogLimit       int
	DataSource     string // shown in the status bar
}

// DashboardModel is the Bubble Tea model for the LogWatch dashboard.
type DashboardModel struct {
	api  model.ReadAPI
	keys KeyMap
	help help.Model

	width  int
	height int

	activeSection Section
	cursors       [sectionCount]int

	analysis *model.Analysis
	timeline []model.TimelineEntry
	stats    model.LiveStats
	logs     []model.LogRecord

	severityIdx int

	showHelp    bool
	showDetails bool
	details     viewport.Model

	updateInterval     time.Duration
	availableIntervals []time.Duration
	currentIntervalIdx int
	paused             bool
	logLimit           int

	// Async tick query guard to avoid overlapping fetches.
	tickInFlight bool

	// Source connectivity tracking.
	lastTickOK        bool
	lastTickAt        time.Time
	consecutiveErrors int
	lastError         string
	lastErrorAt       time.Time

	dataSource string
}

// TickMsg represents periodic updates.
type TickMsg time.Time

// refreshMsg asks for an immediate fetch outside the tick cadence.
type refreshMsg struct{}

// dataLoadedMsg carries one fetch round. Fields are only applied when their
// has* flag is set so a failed call keeps the previous data on screen.
type dataLoadedMsg struct {
	analysis    *model.Analysis
	hasAnalysis bool
	timeline    []model.TimelineEntry
	hasTimeline bool
	stats       model.LiveStats
	hasStats    bool
	logs        []model.LogRecord
	hasLogs     bool
	lastError   string
	at          time.Time
}

// NewDashboardModel creates a dashboard reading from api.
func NewDashboardModel(api model.ReadAPI, cfg Config) *DashboardModel {
	intervals := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		5 * time.Second,
		10 * time.Second,
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 2 * time.Second
	}
	idx := len(intervals) - 1
	for i, iv := range intervals {
		if iv >= cfg.UpdateInterval {
			idx = i
			break
		}
	}
	if cfg.LogLimit <= 0 {
		cfg.LogLimit = 200
	}

	return &DashboardModel{
		api:                api,
		keys:               DefaultKeyMap(),
		help:               help.New(),
		details:            viewport.New(80, 20),
		updateInterval:     intervals[idx],
		availableIntervals: intervals,
		currentIntervalIdx: idx,
		logLimit:           cfg.LogLimit,
		dataSource:         cfg.DataSource,
	}
}

// SeverityFilter returns the active log severity filter; "" means all.
func (m *DashboardModel) SeverityFilter() string {
	return severityCycle[m.severityIdx]
}

// ActiveSection returns the focused list.
func (m *DashboardModel) ActiveSection() Section {
	return m.activeSection
}

func (m *DashboardModel) alerts() []model.Alert {
	if m.analysis == nil {
		return nil
	}
	return m.analysis.Alerts
}

// sectionLen returns the number of rows in a section.
func (m *DashboardModel) sectionLen(s Section) int {
	switch s {
	case SectionAlerts:
		return len(m.alerts())
	case SectionTimeline:
		return len(m.timeline)
	case SectionLogs:
		return len(m.logs)
	}
	return 0
}

func (m *DashboardModel) clampCursors() {
	for s := Section(0); s < sectionCount; s++ {
		n := m.sectionLen(s)
		if m.cursors[s] >= n {
			m.cursors[s] = n - 1
		}
		if m.cursors[s] < 0 {
			m.cursors[s] = 0
		}
	}
}

func (m *DashboardModel) moveCursor(delta int) {
	m.cursors[m.activeSection] += delta
	m.clampCursors()
}
