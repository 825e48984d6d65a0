// Package report renders check results for the terminal and for chat
// messages.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/blockcheck/internal/model"
)

// DefaultTitle heads chat messages when no title is configured.
const DefaultTitle = "Domain block report"

// Line renders one result the way results are streamed to stdout:
// "[2026-10-14T10:00:00+07:00] example.com -> Blocked". Failed checks show
// their "ERROR: ..." text in place of the label.
func Line(r model.Result, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	status := r.Status.Label()
	if r.Status == model.StatusError && strings.HasPrefix(r.Raw, model.ErrorPrefix) {
		status = r.Raw
	}
	return fmt.Sprintf("[%s] %s -> %s", r.CheckedAt.In(loc).Format(time.RFC3339), r.Domain, status)
}

// MessageOptions controls chat message rendering.
type MessageOptions struct {
	Title       string
	Location    *time.Location
	OnlyChanges bool
}

// Message renders a report as plain chat text: title, timestamp, counts,
// one section per non-empty status and a changes section. With
// OnlyChanges the per-status sections are left out.
func Message(rep *model.Report, opts MessageOptions) string {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteByte('\n')
	b.WriteString(rep.StartedAt.In(loc).Format("2006-01-02 15:04:05 MST"))
	b.WriteByte('\n')
	b.WriteString(Summary(rep))
	b.WriteByte('\n')

	if !opts.OnlyChanges {
		for _, s := range model.AllStatuses() {
			results := rep.ByStatus(s)
			if len(results) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s (%d)\n", s.Label(), len(results))
			for _, r := range results {
				if s == model.StatusError && r.Error != "" {
					fmt.Fprintf(&b, "- %s: %s\n", r.Domain, r.Error)
					continue
				}
				fmt.Fprintf(&b, "- %s\n", r.Domain)
			}
		}
	}

	if len(rep.Changes) > 0 {
		fmt.Fprintf(&b, "\nChanges (%d)\n", len(rep.Changes))
		for _, c := range rep.Changes {
			fmt.Fprintf(&b, "- %s: %s -> %s\n", c.Domain, c.Previous.Label(), c.Current.Label())
		}
	} else if opts.OnlyChanges {
		b.WriteString("\nNo changes\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// Summary renders the per-status counts, e.g.
// "Checked 3: 1 blocked, 2 not blocked, 0 unknown, 0 error".
func Summary(rep *model.Report) string {
	counts := rep.Counts()
	parts := make([]string, 0, 4)
	for _, s := range model.AllStatuses() {
		parts = append(parts, fmt.Sprintf("%d %s", counts[s], strings.ToLower(s.Label())))
	}
	return fmt.Sprintf("Checked %d: %s", len(rep.Results), strings.Join(parts, ", "))
}
