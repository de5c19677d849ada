package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// renderSeverityChart draws alert counts per severity as a bar chart.
func renderSeverityChart(stats model.Statistics, width, height int, active bool) string {
	style := sectionStyle.Width(width - 2).Height(height - 2)
	if active {
		style = activeSectionStyle.Width(width - 2).Height(height - 2)
	}
	title := chartTitleStyle.Render(fmt.Sprintf("Alerts by Severity (%d)", stats.TotalAlerts))

	chartWidth := max(12, width-6)
	chartHeight := max(3, height-4)

	levels := []struct {
		label string
		name  string
		count int
	}{
		{"CRIT", model.AlertCritical, stats.CriticalCount},
		{"HIGH", model.AlertHigh, stats.HighCount},
		{"MED", model.AlertMedium, stats.MediumCount},
	}

	barWidth := max(1, (chartWidth-len(levels))/len(levels))
	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(barWidth),
	)
	for _, lvl := range levels {
		color := getSeverityColor(lvl.name)
		bc.Push(barchart.BarData{
			Label: fmt.Sprintf("%s %d", lvl.label, lvl.count),
			Values: []barchart.BarValue{{
				Name:  lvl.name,
				Value: float64(lvl.count),
				Style: lipgloss.NewStyle().Foreground(color).Background(color),
			}},
		})
	}
	bc.Draw()

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, bc.View()))
}

type typeCount struct {
	Type  string
	Count int
}

// topAlertTypes returns alert types by descending count, ties by name.
func topAlertTypes(byType map[string]int, limit int) []typeCount {
	out := make([]typeCount, 0, len(byType))
	for t, c := range byType {
		out = append(out, typeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// renderTypeDistribution draws a horizontal bar per alert type.
func renderTypeDistribution(stats model.Statistics, width, height int) string {
	style := sectionStyle.Width(width - 2).Height(height - 2)
	title := chartTitleStyle.Render("Alerts by Type")

	displayLines := max(1, height-3)
	types := topAlertTypes(stats.ByType, displayLines)
	if len(types) == 0 {
		return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, helpStyle.Render("No alerts detected")))
	}

	maxCount := types[0].Count
	const barWidth = 12
	labelWidth := max(10, width-barWidth-14)

	var lines []string
	for i, tc := range types {
		fill := tc.Count * barWidth / maxCount
		if fill == 0 && tc.Count > 0 {
			fill = 1
		}
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)

		var barColor lipgloss.Style
		switch {
		case i < 2:
			barColor = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		case i < 4:
			barColor = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
		default:
			barColor = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
		}

		lines = append(lines, fmt.Sprintf("%s %s │ %s",
			barColor.Render(bar),
			lipgloss.NewStyle().Foreground(ColorGray).Render(fmt.Sprintf("%4d", tc.Count)),
			lipgloss.NewStyle().Foreground(ColorWhite).Render(truncate(tc.Type, labelWidth)),
		))
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")))
}

// truncate shortens s to at most width runes, marking the cut with "...".
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
