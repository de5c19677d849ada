package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy   = lipgloss.Color("17")
	ColorBlue   = lipgloss.Color("39")
	ColorGray   = lipgloss.Color("244")
	ColorWhite  = lipgloss.Color("255")
	ColorRed    = lipgloss.Color("196")
	ColorOrange = lipgloss.Color("208")
	ColorYellow = lipgloss.Color("220")
	ColorGreen  = lipgloss.Color("42")
	ColorPurple = lipgloss.Color("201")
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.
				BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	selectedRowStyle = lipgloss.NewStyle().
				Background(ColorNavy).
				Foreground(ColorWhite).
				Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)
)

// getSeverityColor returns the color for an alert or record severity.
func getSeverityColor(severity string) lipgloss.Color {
	switch severity {
	case "CRITICAL":
		return ColorPurple
	case "HIGH", "ERROR":
		return ColorRed
	case "MEDIUM", "WARNING":
		return ColorOrange
	case "LOW":
		return ColorYellow
	case "INFO":
		return ColorBlue
	default:
		return ColorWhite
	}
}

func severityStyle(severity string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(getSeverityColor(severity)).Bold(true)
}
