package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logwatch/internal/model"
)

const (
	statusLineHeight = 1
	statsRowHeight   = 3
	chartsRowHeight  = 10
	footerHeight     = 1
	minWidth         = 60
	minHeight        = 24
)

// listHeight returns the number of visible rows in the bottom list.
func (m *DashboardModel) listHeight() int {
	h := m.height - statusLineHeight - statsRowHeight - chartsRowHeight - footerHeight - 3
	return max(3, h)
}

// View renders the dashboard.
func (m *DashboardModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing dashboard..."
	}
	if m.height < minHeight || m.width < minWidth {
		return fmt.Sprintf("Terminal too small. Resize to at least %dx%d.", minWidth, minHeight)
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.showDetails {
		return m.renderDetails()
	}

	var stats model.Statistics
	if m.analysis != nil {
		stats = m.analysis.Stats
	}

	leftWidth := m.width / 2
	charts := lipgloss.JoinHorizontal(lipgloss.Top,
		renderSeverityChart(stats, leftWidth, chartsRowHeight, false),
		renderTypeDistribution(stats, m.width-leftWidth, chartsRowHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusLine(),
		m.renderStatsRow(),
		charts,
		m.renderList(),
		m.help.View(m.keys),
	)
}

func (m *DashboardModel) renderStatusLine() string {
	brand := lipgloss.NewStyle().Background(ColorNavy).Foreground(ColorBlue).Bold(true).Render(" LogWatch Sentinel ")

	var dot string
	switch {
	case m.lastTickAt.IsZero() && m.consecutiveErrors == 0:
		dot = lipgloss.NewStyle().Background(ColorNavy).Foreground(lipgloss.Color("#FFAA00")).Render("●")
	case !m.lastTickOK:
		dot = lipgloss.NewStyle().Background(ColorNavy).Foreground(lipgloss.Color("#FF4444")).Render("●")
	default:
		dot = lipgloss.NewStyle().Background(ColorNavy).Foreground(lipgloss.Color("#44FF44")).Render("●")
	}

	parts := []string{}
	if m.dataSource != "" {
		parts = append(parts, m.dataSource)
	}
	parts = append(parts, fmt.Sprintf("every %s", m.updateInterval))
	if m.paused {
		parts = append(parts, "PAUSED")
	}
	if sev := m.SeverityFilter(); sev != "" {
		parts = append(parts, "logs: "+sev)
	}
	if !m.lastTickAt.IsZero() {
		parts = append(parts, "updated "+m.lastTickAt.Format("15:04:05"))
	}
	if m.lastError != "" && time.Since(m.lastErrorAt) < 30*time.Second {
		parts = append(parts, lipgloss.NewStyle().Background(ColorNavy).Foreground(lipgloss.Color("#FF6666")).Render("error: "+m.lastError))
	}

	line := brand + statusBarStyle.Render(" ") + dot + statusBarStyle.Render(" "+strings.Join(parts, " | ")+" ")
	return statusBarStyle.Width(m.width).Render(line)
}

func (m *DashboardModel) renderStatsRow() string {
	boxes := []struct {
		label string
		value string
		color lipgloss.Color
	}{
		{"Logs", fmt.Sprintf("%d", m.stats.TotalLogs), ColorWhite},
		{"Alerts", fmt.Sprintf("%d", m.stats.TotalAlerts), ColorWhite},
		{"Critical", fmt.Sprintf("%d", m.stats.CriticalAlerts), getSeverityColor(model.AlertCritical)},
		{"High", fmt.Sprintf("%d", m.stats.HighAlerts), getSeverityColor(model.AlertHigh)},
		{"Medium", fmt.Sprintf("%d", m.stats.MediumAlerts), getSeverityColor(model.AlertMedium)},
	}
	boxWidth := m.width / len(boxes)
	rendered := make([]string, len(boxes))
	for i, b := range boxes {
		w := boxWidth
		if i == len(boxes)-1 {
			w = m.width - boxWidth*(len(boxes)-1)
		}
		content := helpStyle.Render(b.label+" ") + lipgloss.NewStyle().Foreground(b.color).Bold(true).Render(b.value)
		rendered[i] = sectionStyle.Width(w - 2).Render(content)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m *DashboardModel) renderTabs() string {
	tabs := make([]string, 0, sectionCount)
	for s := Section(0); s < sectionCount; s++ {
		label := fmt.Sprintf(" %s (%d) ", s, m.sectionLen(s))
		if s == m.activeSection {
			tabs = append(tabs, selectedRowStyle.Render(label))
		} else {
			tabs = append(tabs, helpStyle.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}

func (m *DashboardModel) renderList() string {
	height := m.listHeight()
	innerWidth := m.width - 4

	rows := m.sectionRows(innerWidth)
	cursor := m.cursors[m.activeSection]

	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	end := min(len(rows), start+height)

	lines := make([]string, 0, height)
	if len(rows) == 0 {
		lines = append(lines, helpStyle.Render(m.emptyMessage()))
	}
	for i := start; i < end; i++ {
		if i == cursor {
			lines = append(lines, selectedRowStyle.Width(innerWidth).Render(rows[i].plain))
		} else {
			lines = append(lines, rows[i].styled)
		}
	}
	for len(lines) < height {
		lines = append(lines, "")
	}

	body := lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), strings.Join(lines, "\n"))
	return activeSectionStyle.Width(m.width - 2).Render(body)
}

func (m *DashboardModel) emptyMessage() string {
	switch m.activeSection {
	case SectionAlerts:
		return "No alerts detected"
	case SectionTimeline:
		return "No attack stages observed"
	default:
		if sev := m.SeverityFilter(); sev != "" {
			return "No " + sev + " records"
		}
		return "No records ingested yet"
	}
}

type listRow struct {
	plain  string
	styled string
}

func (m *DashboardModel) sectionRows(width int) []listRow {
	switch m.activeSection {
	case SectionAlerts:
		alerts := m.alerts()
		rows := make([]listRow, len(alerts))
		for i, a := range alerts {
			sev := fmt.Sprintf("%-8s", a.Severity)
			rest := truncate(fmt.Sprintf(" %-19s %-26s %s", a.Timestamp, a.Type, a.Description), max(1, width-len(sev)))
			rows[i] = listRow{plain: sev + rest, styled: severityStyle(a.Severity).Render(sev) + rest}
		}
		return rows
	case SectionTimeline:
		rows := make([]listRow, len(m.timeline))
		for i, e := range m.timeline {
			sev := fmt.Sprintf("%-8s", e.Severity)
			rest := truncate(fmt.Sprintf(" %-19s %s: %s", e.Time, e.Stage, e.Description), max(1, width-len(sev)))
			rows[i] = listRow{plain: sev + rest, styled: severityStyle(e.Severity).Render(sev) + rest}
		}
		return rows
	default:
		rows := make([]listRow, len(m.logs))
		for i, r := range m.logs {
			sev := fmt.Sprintf("%-8s", r.Severity)
			rest := truncate(fmt.Sprintf(" %-19s %-8s %s", r.Timestamp, r.LogType, r.Message), max(1, width-len(sev)))
			rows[i] = listRow{plain: sev + rest, styled: severityStyle(r.Severity).Render(sev) + rest}
		}
		return rows
	}
}

// detailContent renders every field of the selected row.
func (m *DashboardModel) detailContent() (title, body string) {
	idx := m.cursors[m.activeSection]
	var fields [][2]string

	switch m.activeSection {
	case SectionAlerts:
		alerts := m.alerts()
		if idx >= len(alerts) {
			return "Alert", ""
		}
		a := alerts[idx]
		title = fmt.Sprintf("Alert #%d", a.ID)
		fields = [][2]string{
			{"Type", a.Type},
			{"Severity", a.Severity},
			{"Description", a.Description},
			{"Timestamp", a.Timestamp},
			{"Source", a.Source},
			{"IP Address", a.IPAddress},
			{"Username", a.Username},
			{"Log ID", fmt.Sprintf("%d", a.LogID)},
			{"Details", a.Details},
		}
	case SectionTimeline:
		if idx >= len(m.timeline) {
			return "Timeline", ""
		}
		e := m.timeline[idx]
		title = e.Stage
		fields = [][2]string{
			{"Time", e.Time},
			{"Stage", e.Stage},
			{"Severity", e.Severity},
			{"Description", e.Description},
			{"Details", e.Details},
		}
	default:
		if idx >= len(m.logs) {
			return "Log", ""
		}
		r := m.logs[idx]
		title = fmt.Sprintf("Log #%d", r.ID)
		fields = [][2]string{
			{"Timestamp", r.Timestamp},
			{"Source", r.Source},
			{"Severity", r.Severity},
			{"Type", r.LogType},
			{"IP Address", r.IPAddress},
			{"Username", r.Username},
			{"Message", r.Message},
			{"Raw", r.RawLog},
		}
	}

	keyStyle := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)
	var b strings.Builder
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		b.WriteString(keyStyle.Render(fmt.Sprintf("%-12s", f[0])))
		b.WriteString(" ")
		b.WriteString(f[1])
		b.WriteString("\n")
	}
	return title, b.String()
}

// renderModal renders a scrollable centered modal around the details viewport.
func (m *DashboardModel) renderModal(title, content, status string) string {
	modalWidth := m.width - 8
	modalHeight := m.height - 4
	contentWidth := modalWidth - 4
	contentHeight := modalHeight - 4

	m.details.Width = contentWidth
	m.details.Height = contentHeight
	m.details.SetContent(lipgloss.NewStyle().Width(contentWidth).Render(content))

	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(m.details.View())

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render(title)

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, helpStyle.Render(status))

	final := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, final)
}

func (m *DashboardModel) renderDetails() string {
	title, body := m.detailContent()
	return m.renderModal(title, body, "up/down: Scroll | PgUp/PgDn: Page | Enter/ESC: Close")
}

func (m *DashboardModel) renderHelp() string {
	h := m.help
	h.ShowAll = true
	content := "LogWatch Sentinel dashboard\n\n" +
		"The top row shows live totals. The charts summarize every alert the\n" +
		"detector currently reports. Use tab to switch between alerts, the\n" +
		"attack timeline and recent log records.\n\n" +
		h.View(m.keys)
	return m.renderModal("Help", content, "?/h/ESC: Close")
}
