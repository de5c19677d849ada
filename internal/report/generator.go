// Package report renders the security analysis PDF.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/tinytelemetry/logwatch/internal/model"
)

// maxTopAlerts is the number of alerts listed in the report body.
const maxTopAlerts = 10

// Data is the input of one report.
type Data struct {
	GeneratedAt time.Time
	TotalLogs   int64
	Alerts      []model.Alert
	Stats       model.Statistics
	Timeline    []model.TimelineEntry
}

// Generator builds PDF reports.
type Generator struct{}

// NewGenerator creates a PDF generator.
func NewGenerator() *Generator {
	return &Generator{}
}

var (
	colorTitle = []int{30, 58, 138}
	colorDark  = []int{31, 41, 55}
	colorMuted = []int{107, 114, 128}
	colorLight = []int{243, 244, 246}
	colorWhite = []int{255, 255, 255}

	severityColors = map[string][]int{
		model.AlertCritical: {239, 68, 68},
		model.AlertHigh:     {249, 115, 22},
		model.AlertMedium:   {245, 158, 11},
	}
)

// Filename returns the report file name for t.
func Filename(t time.Time) string {
	return fmt.Sprintf("LogWatch_Report_%s.pdf", t.Format("20060102_150405"))
}

// Generate renders data as a PDF document.
func (g *Generator) Generate(data *Data) ([]byte, error) {
	if data == nil {
		data = &Data{}
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle("LogWatch Sentinel - Security Analysis Report", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	g.addHeader(pdf, data)
	g.addSeveritySummary(pdf, data)
	g.addTopAlerts(pdf, data, tr)
	if len(data.Timeline) > 0 {
		g.addTimeline(pdf, data, tr)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders data and stores it under dir. It returns the written path.
func (g *Generator) WriteFile(dir string, data *Data) (string, error) {
	if data == nil {
		data = &Data{}
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	out, err := g.Generate(data)
	if err != nil {
		return "", err
	}
	return Save(dir, data.GeneratedAt, out)
}

// Save writes a rendered report under dir using the name for generatedAt.
func Save(dir string, generatedAt time.Time, pdf []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, Filename(generatedAt))
	if err := os.WriteFile(path, pdf, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func (g *Generator) addHeader(pdf *fpdf.Fpdf, data *Data) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(colorTitle[0], colorTitle[1], colorTitle[2])
	pdf.CellFormat(0, 12, "LogWatch Sentinel - Security Analysis Report", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	g.labelLine(pdf, "Generated:", data.GeneratedAt.Format("2006-01-02 15:04:05"))
	g.labelLine(pdf, "Total Logs Analyzed:", fmt.Sprintf("%d", data.TotalLogs))
	g.labelLine(pdf, "Threats Detected:", fmt.Sprintf("%d", len(data.Alerts)))
	pdf.Ln(6)
}

func (g *Generator) labelLine(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func (g *Generator) addSeveritySummary(pdf *fpdf.Fpdf, data *Data) {
	g.addSectionHeader(pdf, "Severity Summary")

	widths := []float64{60, 30}
	g.drawTableHeader(pdf, []string{"Severity Level", "Count"}, widths)

	counts := []struct {
		label string
		n     int
	}{
		{model.AlertCritical, data.Stats.CriticalCount},
		{model.AlertHigh, data.Stats.HighCount},
		{model.AlertMedium, data.Stats.MediumCount},
	}
	for i, c := range counts {
		color := severityColors[c.label]
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.Rect(pdf.GetX(), pdf.GetY()+1, 2, 4, "F")
		g.drawTableRow(pdf, []string{"  " + c.label, fmt.Sprintf("%d", c.n)}, widths, i%2 == 0)
	}
	pdf.Ln(8)
}

func (g *Generator) addTopAlerts(pdf *fpdf.Fpdf, data *Data, tr func(string) string) {
	g.addSectionHeader(pdf, "Top Security Alerts")

	if len(data.Alerts) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		pdf.CellFormat(0, 8, "No threats detected.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	for i, a := range data.Alerts {
		if i >= maxTopAlerts {
			break
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. [%s] %s", i+1, a.Severity, a.Description)), "", "L", false)

		source := a.Source
		if source == "" {
			source = "N/A"
		}
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("   Time: %s | Source: %s", a.Timestamp, source)), "", "L", false)
		pdf.Ln(2)
	}
	pdf.Ln(4)
}

func (g *Generator) addTimeline(pdf *fpdf.Fpdf, data *Data, tr func(string) string) {
	g.addSectionHeader(pdf, "Attack Timeline")

	widths := []float64{40, 40, 25, 75}
	g.drawTableHeader(pdf, []string{"Time", "Stage", "Severity", "Details"}, widths)
	for i, e := range data.Timeline {
		g.drawTableRow(pdf, []string{
			tr(e.Time),
			tr(e.Stage),
			e.Severity,
			tr(truncateString(e.Details, 48)),
		}, widths, i%2 == 0)
	}
}

func (g *Generator) addSectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (g *Generator) drawTableHeader(pdf *fpdf.Fpdf, headers []string, widths []float64) {
	pdf.SetFillColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.SetTextColor(colorWhite[0], colorWhite[1], colorWhite[2])
	pdf.SetFont("Helvetica", "B", 9)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func (g *Generator) drawTableRow(pdf *fpdf.Fpdf, values []string, widths []float64, alternate bool) {
	if alternate {
		pdf.SetFillColor(colorLight[0], colorLight[1], colorLight[2])
	} else {
		pdf.SetFillColor(colorWhite[0], colorWhite[1], colorWhite[2])
	}
	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.SetFont("Helvetica", "", 8)
	for i, value := range values {
		pdf.CellFormat(widths[i], 6, value, "", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
