package browser

import (
	"strings"
	"time"
)

// resultWatcher decides when the result container has finished rendering:
// either it holds a row per submitted domain, or its text is non-empty and
// unchanged across two polls after the minimum wait.
type resultWatcher struct {
	want    int
	minWait time.Duration
	start   time.Time

	last string
	seen bool
}

func newResultWatcher(want int, minWait time.Duration, start time.Time) *resultWatcher {
	return &resultWatcher{want: want, minWait: minWait, start: start}
}

func (w *resultWatcher) done(rows int, text string, now time.Time) bool {
	if w.want > 0 && rows >= w.want {
		return true
	}
	text = strings.Join(strings.Fields(text), " ")
	stable := text != "" && w.seen && text == w.last
	w.last, w.seen = text, true
	return stable && now.Sub(w.start) >= w.minWait
}
