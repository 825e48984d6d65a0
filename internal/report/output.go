package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/blockcheck/internal/model"
)

// Output formats accepted by Write.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidFormat reports whether f is a supported output format.
func ValidFormat(f string) bool {
	switch f {
	case FormatText, FormatTable, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// Table writes results as a rounded go-pretty table.
func Table(w io.Writer, results []model.Result, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Domain", "Status", "Checked At", "Detail"})
	for _, r := range results {
		detail := r.Error
		if detail == "" {
			detail = truncate(strings.Join(strings.Fields(r.Raw), " "), 60)
		}
		t.AppendRow(table.Row{r.Domain, r.Status.Label(), r.CheckedAt.In(loc).Format(time.RFC3339), detail})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// Write renders the whole report in the given format. The text format is
// one Line per result followed by the summary.
func Write(w io.Writer, rep *model.Report, format string, loc *time.Location) error {
	switch format {
	case FormatText, "":
		for _, r := range rep.Results {
			if _, err := fmt.Fprintln(w, Line(r, loc)); err != nil {
				return eris.Wrap(err, "report: write line")
			}
		}
		if _, err := fmt.Fprintln(w, Summary(rep)); err != nil {
			return eris.Wrap(err, "report: write summary")
		}
	case FormatTable:
		Table(w, rep.Results, loc)
		if _, err := fmt.Fprintln(w, Summary(rep)); err != nil {
			return eris.Wrap(err, "report: write summary")
		}
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return eris.Wrap(err, "report: encode json")
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
