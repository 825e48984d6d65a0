// Package scrape turns the checker's rendered result container into
// per-domain result text.
package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/blockcheck/internal/domains"
)

// DefaultRowSelector matches result rows rendered as a table.
const DefaultRowSelector = "table tbody tr"

// ParseResults extracts the status text for each requested domain from the
// result container HTML. Rows matched by rowSelector are used first: a
// cell equal to a requested domain marks the row, and the cells after it
// are the status. Otherwise a row or text line naming the domain as a
// whole hostname is taken. When exactly one domain was submitted and
// nothing mentions it, the whole container text is its result. Domains
// with no match map to "".
func ParseResults(containerHTML string, requested []string, rowSelector string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(containerHTML))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse result html")
	}
	if rowSelector == "" {
		rowSelector = DefaultRowSelector
	}

	out := make(map[string]string, len(requested))
	want := make(map[string]struct{}, len(requested))
	for _, d := range requested {
		out[d] = ""
		want[d] = struct{}{}
	}

	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		texts := make([]string, cells.Length())
		cells.Each(func(i int, c *goquery.Selection) {
			texts[i] = collapse(c.Text())
		})

		// A cell holding exactly a requested domain; the status is what
		// follows it, so a leading row number is dropped.
		for i, cell := range texts {
			d, err := domains.Normalize(cell)
			if err != nil {
				continue
			}
			if _, ok := want[d]; ok && out[d] == "" {
				out[d] = joinNonEmpty(texts[i+1:])
				return
			}
		}
		// Domain embedded in a cell ("a.example (www)"): take the whole row.
		rowText := joinNonEmpty(texts)
		lower := strings.ToLower(rowText)
		for _, d := range requested {
			if out[d] == "" && containsHost(lower, d) {
				out[d] = rowText
				return
			}
		}
	})

	missing := 0
	for _, d := range requested {
		if out[d] == "" {
			missing++
		}
	}
	if missing == 0 {
		return out, nil
	}

	lines := TextLines(doc.Selection)
	for _, d := range requested {
		if out[d] != "" {
			continue
		}
		for _, line := range lines {
			if containsHost(strings.ToLower(line), d) {
				out[d] = line
				break
			}
		}
	}

	if len(requested) == 1 && out[requested[0]] == "" {
		out[requested[0]] = strings.Join(lines, "\n")
	}
	return out, nil
}

// ContainerText returns the visible text of the container, one line per
// block element.
func ContainerText(containerHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(containerHTML))
	if err != nil {
		return "", eris.Wrap(err, "scrape: parse result html")
	}
	return strings.Join(TextLines(doc.Selection), "\n"), nil
}

// TextLines renders the selection's text with a line break at every block
// element and <br>, dropping blank lines and script/style content.
func TextLines(sel *goquery.Selection) []string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l = collapse(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "tbody": true,
	"thead": true, "tfoot": true, "tr": true, "ul": true,
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		case "br":
			b.WriteByte('\n')
			return
		case "td", "th":
			b.WriteByte(' ')
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

// containsHost reports whether host occurs in text as a whole hostname, so
// "a.example" is not found inside "ba.example" or "a.example.net".
func containsHost(text, host string) bool {
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], host)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(host)
		if (i == 0 || !hostByte(text[i-1])) && (end == len(text) || !hostByte(text[end])) {
			return true
		}
		start = i + 1
	}
	return false
}

func hostByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '.' || c == '-'
}

func joinNonEmpty(parts []string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
