package reports

import (
	"time"

	"construction-monitor/report/render"
)

// FormatTimestamp renders row timestamps as dd-mm-yyyy HH:MM:SS in report time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(render.TimeZone).Format("02-01-2006 15:04:05")
}
