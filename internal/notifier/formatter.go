package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"FREDflow/internal/pipeline"
)

// FormatRunReport renders a run report as a Telegram HTML message.
func FormatRunReport(r *pipeline.Report) string {
	var b strings.Builder

	icon := "✅"
	if r.Failures() > 0 {
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>FREDflow sync</b> | %s\n", icon, r.Started.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Run: <code>%s</code> (%s)\n\n", r.RunID, r.Finished.Sub(r.Started).Round(time.Second)))

	counts := map[pipeline.Outcome]int{}
	for _, s := range r.Series {
		counts[s.Outcome]++
	}
	b.WriteString(fmt.Sprintf("Series: %d data, %d empty, %d failed, %d skipped\n",
		counts[pipeline.OutcomeData], counts[pipeline.OutcomeEmpty],
		counts[pipeline.OutcomeFailure], counts[pipeline.OutcomeSkipped]))
	if n := len(r.Reconciliation.Added); n > 0 {
		b.WriteString(fmt.Sprintf("New series: %d\n", n))
	}

	upserted := r.Upserted()
	if len(upserted) > 0 {
		b.WriteString("\n<b>Rows upserted:</b>\n")
		names := make([]string, 0, len(upserted))
		for name := range upserted {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(fmt.Sprintf("  %s: %d\n", html.EscapeString(name), upserted[name]))
		}
	}

	var errs []string
	for _, s := range r.Series {
		if s.Error != "" {
			errs = append(errs, fmt.Sprintf("  %s: %s", s.ID, html.EscapeString(s.Error)))
		}
		for name, d := range s.Destinations {
			if d.Error != "" {
				errs = append(errs, fmt.Sprintf("  %s → %s: %s", s.ID, html.EscapeString(name), html.EscapeString(d.Error)))
			}
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		b.WriteString("\n<b>Errors:</b>\n")
		b.WriteString(strings.Join(errs, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
