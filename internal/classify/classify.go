// Package classify labels the text scraped from the checker page.
package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/model"
)

// DefaultBlocked and DefaultNotBlocked mirror the config defaults.
var (
	DefaultBlocked    = []string{"diblokir", "terblokir", "blocked", "internet positif", "trustpositif", "nawala"}
	DefaultNotBlocked = []string{"tidak diblokir", "tidak terblokir", "not blocked", "unblocked", "aman", "safe", "accessible"}
)

// Classifier maps scraped result text to a Status by keyword match.
//
// Not-blocked keywords that contain a blocked keyword ("tidak diblokir",
// "unblocked") are negations and are tested first. Blocked keywords come
// next. The remaining not-blocked words ("aman", "safe") are tested last
// and only count when not preceded by a negating word.
type Classifier struct {
	blocked   []string
	negations []string
	positives []string
}

// negators turn a following positive word into its opposite.
var negators = map[string]bool{"tidak": true, "tak": true, "bukan": true, "not": true, "non": true}

// New builds a classifier from keyword lists. Empty lists fall back to the
// defaults.
func New(blocked, notBlocked []string) *Classifier {
	if len(blocked) == 0 {
		blocked = DefaultBlocked
	}
	if len(notBlocked) == 0 {
		notBlocked = DefaultNotBlocked
	}
	c := &Classifier{}
	c.blocked = c.prepare(blocked)
	for _, kw := range c.prepare(notBlocked) {
		if c.negates(kw) {
			c.negations = append(c.negations, kw)
		} else {
			c.positives = append(c.positives, kw)
		}
	}
	return c
}

// FromConfig builds a classifier from the classify config section.
func FromConfig(cfg config.ClassifyConfig) *Classifier {
	return New(cfg.BlockedKeywords, cfg.NotBlockedKeywords)
}

func (c *Classifier) negates(kw string) bool {
	for _, b := range c.blocked {
		if strings.Contains(kw, b) {
			return true
		}
	}
	return false
}

func (c *Classifier) prepare(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = c.normalize(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// normalize case-folds and collapses runs of whitespace. A Caser is
// stateful, so each call gets its own.
func (c *Classifier) normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Classify returns the status for one domain's scraped text.
func (c *Classifier) Classify(raw string) model.Status {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, strings.TrimSpace(model.ErrorPrefix)) {
		return model.StatusError
	}
	text := c.normalize(trimmed)
	if text == "" {
		return model.StatusUnknown
	}
	for _, kw := range c.negations {
		if containsPhrase(text, kw) {
			return model.StatusNotBlocked
		}
	}
	for _, kw := range c.blocked {
		if containsPhrase(text, kw) {
			return model.StatusBlocked
		}
	}
	for _, kw := range c.positives {
		if containsAffirmed(text, kw) {
			return model.StatusNotBlocked
		}
	}
	return model.StatusUnknown
}

// ClassifyDomain classifies text scraped for domain, ignoring the domain
// name itself so that "safe.example.com Diblokir" is not read as safe.
func (c *Classifier) ClassifyDomain(domain, raw string) model.Status {
	if domain == "" {
		return c.Classify(raw)
	}
	text := c.normalize(raw)
	text = strings.ReplaceAll(text, c.normalize(domain), " ")
	if strings.TrimSpace(raw) != "" && strings.TrimSpace(text) == "" {
		return model.StatusUnknown
	}
	if strings.HasPrefix(strings.TrimSpace(raw), strings.TrimSpace(model.ErrorPrefix)) {
		return model.StatusError
	}
	return c.Classify(text)
}

// containsPhrase reports whether phrase occurs in text on word boundaries,
// so "aman" does not match "keamanan".
func containsPhrase(text, phrase string) bool {
	return findPhrase(text, phrase, func(int) bool { return true })
}

// containsAffirmed is containsPhrase that skips occurrences right after a
// negator, so "tidak aman" does not count as "aman".
func containsAffirmed(text, phrase string) bool {
	return findPhrase(text, phrase, func(i int) bool {
		prev := strings.FieldsFunc(text[:i], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		return len(prev) == 0 || !negators[prev[len(prev)-1]]
	})
}

func findPhrase(text, phrase string, accept func(i int) bool) bool {
	for start := 0; start <= len(text); {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if boundaryBefore(text, i) && boundaryAfter(text, end) && accept(i) {
			return true
		}
		start = i + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
