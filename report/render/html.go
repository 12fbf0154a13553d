package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
	_ "time/tzdata" // America/Sao_Paulo must resolve on slim images

	"construction-monitor/report/model"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// Project is the obra metadata printed in the report header.
type Project struct {
	Name     string
	Location string
}

var (
	reportTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
		"dateTime":        FormatDateTime,
		"date":            FormatDate,
		"previous":        func(seq int) int { return seq - 1 },
		"statusBadge":     statusBadge,
		"confidenceBadge": confidenceBadge,
		"changeBadge":     changeBadge,
		"signed":          signed,
	}).ParseFS(templateFS, "templates/report.html.tmpl"))

	// TimeZone is where report dates are displayed.
	TimeZone = mustLocation("America/Sao_Paulo")
)

type view struct {
	Model   model.ReportModel
	Project Project
}

// HTML renders the self-contained report document. Output depends only on its inputs.
func HTML(m model.ReportModel, p Project) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view{Model: m, Project: p}); err != nil {
		return "", fmt.Errorf("render report %s: %w", m.AnalysisID, err)
	}
	return buf.String(), nil
}

// FormatDateTime renders an analysis timestamp as dd/mm/yyyy HH:MM in São Paulo time.
// Unparseable input is returned as is.
func FormatDateTime(raw string) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	return t.In(TimeZone).Format("02/01/2006 15:04")
}

// FormatDate renders a timestamp as dd/mm/yyyy in São Paulo time.
func FormatDate(raw string) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	return t.In(TimeZone).Format("02/01/2006")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp shapes the analysis service emits.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func statusBadge(status string) string {
	if status == "completed" {
		return "badge-success"
	}
	return "badge-warning"
}

func confidenceBadge(tier model.ConfidenceTier) string {
	switch tier {
	case model.ConfidenceHigh:
		return "badge-success"
	case model.ConfidenceMedium:
		return "badge-warning"
	default:
		return "badge-danger"
	}
}

func changeBadge(change int) string {
	if change > 0 {
		return "badge-success"
	}
	return "badge-danger"
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
