package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// fetchTimeout bounds one fetch round against the read API.
const fetchTimeout = 10 * time.Second

// Init starts the first fetch and the tick loop.
func (m *DashboardModel) Init() tea.Cmd {
	m.tickInFlight = true
	return tea.Batch(m.fetchDataCmd(), m.tickCmd())
}

func (m *DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchDataCmd queries every read surface the dashboard renders. The first
// error is kept for the status line; the remaining calls still run.
func (m *DashboardModel) fetchDataCmd() tea.Cmd {
	api := m.api
	limit := m.logLimit
	severity := m.SeverityFilter()

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		var msg dataLoadedMsg
		record := func(err error) {
			if msg.lastError == "" {
				msg.lastError = err.Error()
			}
		}

		if a, err := api.Analyze(ctx); err != nil {
			record(err)
		} else {
			msg.analysis, msg.hasAnalysis = a, true
		}
		if tl, err := api.Timeline(ctx); err != nil {
			record(err)
		} else {
			msg.timeline, msg.hasTimeline = tl, true
		}
		if st, err := api.Stats(ctx); err != nil {
			record(err)
		} else {
			msg.stats, msg.hasStats = st, true
		}
		if logs, err := api.RecentLogs(ctx, limit, severity); err != nil {
			record(err)
		} else {
			msg.logs, msg.hasLogs = logs, true
		}
		msg.at = time.Now()
		return msg
	}
}

// Update handles messages.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case TickMsg:
		if m.paused || m.tickInFlight {
			return m, m.tickCmd()
		}
		m.tickInFlight = true
		return m, tea.Batch(m.fetchDataCmd(), m.tickCmd())

	case refreshMsg:
		if m.tickInFlight {
			return m, nil
		}
		m.tickInFlight = true
		return m, m.fetchDataCmd()

	case dataLoadedMsg:
		m.tickInFlight = false
		m.applyData(msg)
		return m, nil
	}
	return m, nil
}

func (m *DashboardModel) applyData(msg dataLoadedMsg) {
	if msg.hasAnalysis {
		m.analysis = msg.analysis
	}
	if msg.hasTimeline {
		m.timeline = msg.timeline
	}
	if msg.hasStats {
		m.stats = msg.stats
	}
	if msg.hasLogs {
		m.logs = msg.logs
	}
	m.clampCursors()

	if msg.lastError != "" {
		m.lastTickOK = false
		m.consecutiveErrors++
		m.lastError = msg.lastError
		m.lastErrorAt = msg.at
		return
	}
	m.lastTickOK = true
	m.lastTickAt = msg.at
	m.consecutiveErrors = 0
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	// Overlays swallow navigation until closed.
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape, m.keys.Quit) {
			m.showHelp = false
		}
		return m, nil
	}
	if m.showDetails {
		switch {
		case key.Matches(msg, m.keys.Enter, m.keys.Escape):
			m.showDetails = false
		case key.Matches(msg, m.keys.Up):
			m.details.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.details.ScrollDown(1)
		case key.Matches(msg, m.keys.PageUp):
			m.details.HalfPageUp()
		case key.Matches(msg, m.keys.PageDown):
			m.details.HalfPageDown()
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.NextSection):
		m.activeSection = (m.activeSection + 1) % sectionCount
	case key.Matches(msg, m.keys.PrevSection):
		m.activeSection = (m.activeSection + sectionCount - 1) % sectionCount
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.Home):
		m.cursors[m.activeSection] = 0
	case key.Matches(msg, m.keys.End):
		m.cursors[m.activeSection] = m.sectionLen(m.activeSection) - 1
		m.clampCursors()
	case key.Matches(msg, m.keys.Enter):
		if m.sectionLen(m.activeSection) > 0 {
			m.showDetails = true
			m.details.GotoTop()
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg { return refreshMsg{} }
	case key.Matches(msg, m.keys.SeverityFilter):
		m.severityIdx = (m.severityIdx + 1) % len(severityCycle)
		m.cursors[SectionLogs] = 0
		return m, func() tea.Msg { return refreshMsg{} }
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keys.IntervalUp):
		if m.currentIntervalIdx > 0 {
			m.currentIntervalIdx--
			m.updateInterval = m.availableIntervals[m.currentIntervalIdx]
		}
	case key.Matches(msg, m.keys.IntervalDown):
		if m.currentIntervalIdx < len(m.availableIntervals)-1 {
			m.currentIntervalIdx++
			m.updateInterval = m.availableIntervals[m.currentIntervalIdx]
		}
	}
	return m, nil
}
