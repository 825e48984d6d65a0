package browser

import (
	"time"

	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/scrape"
)

// Options configures the browser and how a checker page is driven.
type Options struct {
	URL            string
	InputSelector  string
	SubmitSelector string
	ResultSelector string
	RowSelector    string

	WaitMode      string
	PageLoadDelay time.Duration
	ResultDelay   time.Duration
	PollInterval  time.Duration
	Timeout       time.Duration

	Headless   bool
	Bin        string
	ControlURL string
	UserAgent  string
}

// OptionsFromConfig maps the checker config section to Options, filling
// unset selectors and durations with defaults.
func OptionsFromConfig(c config.CheckerConfig) Options {
	o := Options{
		URL:            c.URL,
		InputSelector:  c.InputSelector,
		SubmitSelector: c.SubmitSelector,
		ResultSelector: c.ResultSelector,
		RowSelector:    c.RowSelector,
		WaitMode:       c.WaitMode,
		PageLoadDelay:  c.PageLoadDelay(),
		ResultDelay:    c.ResultDelay(),
		PollInterval:   c.PollInterval(),
		Timeout:        c.Timeout(),
		Headless:       c.Headless,
		Bin:            c.BrowserBin,
		ControlURL:     c.ControlURL,
		UserAgent:      c.UserAgent,
	}
	return o.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.InputSelector == "" {
		o.InputSelector = DefaultInputSelector
	}
	if o.ResultSelector == "" {
		o.ResultSelector = DefaultResultSelector
	}
	if o.RowSelector == "" {
		o.RowSelector = scrape.DefaultRowSelector
	}
	if o.WaitMode == "" {
		o.WaitMode = config.WaitPoll
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Minute
	}
	return o
}
