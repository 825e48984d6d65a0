package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/resilience"
	"github.com/sells-group/blockcheck/internal/scrape"
)

// BlockedError reports that the checker served an anti-bot interstitial
// instead of its form.
type BlockedError struct {
	Kind scrape.BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("browser: checker page blocked (%s)", e.Kind)
}

// Submit opens a tab on the checker, enters domains one per line, submits
// the form and returns the result container's HTML once it has rendered.
// The tab is closed before returning.
func (b *Browser) Submit(ctx context.Context, domains []string) (string, error) {
	if len(domains) == 0 {
		return "", eris.New("browser: no domains to submit")
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	log := zap.L().With(zap.String("component", "browser"), zap.Int("domains", len(domains)))

	page, err := b.rod.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "browser: open page"), 0)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug("browser: close page", zap.Error(cerr))
		}
	}()
	p := page.Context(ctx)

	if b.opts.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.opts.UserAgent}); err != nil {
			return "", eris.Wrap(err, "browser: set user agent")
		}
	}

	if err := p.Navigate(b.opts.URL); err != nil {
		return "", eris.Wrapf(err, "browser: navigate %s", b.opts.URL)
	}
	if err := p.WaitLoad(); err != nil {
		return "", eris.Wrap(err, "browser: wait load")
	}
	if err := sleep(ctx, b.opts.PageLoadDelay); err != nil {
		return "", eris.Wrap(err, "browser: page load delay")
	}

	if pageHTML, err := p.HTML(); err == nil {
		if blocked, kind := scrape.DetectBlock(pageHTML); blocked {
			return "", resilience.NewTransientError(&BlockedError{Kind: kind}, 0)
		}
	}

	field, err := p.Element(b.opts.InputSelector)
	if err != nil {
		return "", eris.Wrapf(err, "browser: find input %q", b.opts.InputSelector)
	}
	if err := field.SelectAllText(); err != nil {
		return "", eris.Wrap(err, "browser: select input")
	}
	if err := field.Input(""); err != nil {
		return "", eris.Wrap(err, "browser: clear input")
	}
	if err := field.Input(strings.Join(domains, "\n")); err != nil {
		return "", eris.Wrap(err, "browser: type domains")
	}

	if err := b.submitForm(p); err != nil {
		return "", err
	}
	log.Debug("browser: submitted")

	if b.opts.WaitMode == config.WaitFixed {
		if err := sleep(ctx, b.opts.ResultDelay); err != nil {
			return "", eris.Wrap(err, "browser: result delay")
		}
		res, err := p.Element(b.opts.ResultSelector)
		if err != nil {
			return "", eris.Wrapf(err, "browser: find results %q", b.opts.ResultSelector)
		}
		out, err := res.HTML()
		if err != nil {
			return "", eris.Wrap(err, "browser: read results")
		}
		return out, nil
	}
	return b.pollResults(ctx, p, len(domains))
}

func (b *Browser) submitForm(p *rod.Page) error {
	if b.opts.SubmitSelector != "" {
		btn, err := p.Element(b.opts.SubmitSelector)
		if err != nil {
			return eris.Wrapf(err, "browser: find submit %q", b.opts.SubmitSelector)
		}
		if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return eris.Wrap(err, "browser: click submit")
		}
		return nil
	}
	// The focus is still in the textarea after typing.
	if err := p.KeyActions().Press(input.ControlLeft).Type(input.Enter).Do(); err != nil {
		return eris.Wrap(err, "browser: press ctrl+enter")
	}
	return nil
}

func (b *Browser) pollResults(ctx context.Context, p *rod.Page, want int) (string, error) {
	w := newResultWatcher(want, b.opts.ResultDelay, time.Now())
	return pollUntil(ctx, b.opts.PollInterval, w, func() (snapshot, bool) {
		has, res, err := p.Has(b.opts.ResultSelector)
		if err != nil || !has {
			return snapshot{}, false
		}
		rows, err := res.Elements(b.opts.RowSelector)
		if err != nil {
			return snapshot{}, false
		}
		text, err := res.Text()
		if err != nil {
			return snapshot{}, false
		}
		return snapshot{rows: len(rows), text: text, html: res.HTML}, true
	})
}

// snapshot is one look at the result container.
type snapshot struct {
	rows int
	text string
	html func() (string, error)
}

// pollUntil reads the container every interval until the watcher is
// satisfied. read reports false when the container is not there yet. A
// deadline is transient; cancellation of the caller's context is not.
func pollUntil(ctx context.Context, interval time.Duration, w *resultWatcher, read func() (snapshot, bool)) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := eris.Wrap(ctx.Err(), "browser: results did not render")
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", resilience.NewTransientError(err, 0)
			}
			return "", err
		case now := <-ticker.C:
			snap, ok := read()
			if !ok || !w.done(snap.rows, snap.text, now) {
				continue
			}
			out, err := snap.html()
			if err != nil {
				return "", eris.Wrap(err, "browser: read results")
			}
			return out, nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
