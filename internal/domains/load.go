package domains

import (
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// ParseList splits a free-form list into entries. Entries may be separated
// by newlines, commas, semicolons or whitespace; anything after '#' on a
// line is a comment.
func ParseList(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || unicode.IsSpace(r)
		})
		out = append(out, fields...)
	}
	return out
}

// LoadFile reads a domain list file.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "domains: read %s", path)
	}
	return ParseList(string(data)), nil
}

// Collect normalises and de-duplicates entries from every source, keeping
// first-seen order. Invalid entries are returned as errors and skipped.
func Collect(sources ...[]string) ([]string, []error) {
	seen := make(map[string]struct{})
	var (
		out  []string
		errs []error
	)
	for _, src := range sources {
		for _, entry := range src {
			for _, raw := range ParseList(entry) {
				d, err := Normalize(raw)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if _, dup := seen[d]; dup {
					continue
				}
				seen[d] = struct{}{}
				out = append(out, d)
			}
		}
	}
	return out, errs
}
