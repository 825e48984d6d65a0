// Package browser drives a headless Chrome against the checker site
// using go-rod.
package browser

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Submitter submits a batch of domains to the checker and returns the
// rendered result container HTML.
type Submitter interface {
	Submit(ctx context.Context, domains []string) (string, error)
}

// Browser is a connected Chrome instance. Submit is safe for concurrent
// use; each call works in its own tab.
type Browser struct {
	opts Options
	rod  *rod.Browser

	// launched is nil when attached to an existing control URL.
	launched *launcher.Launcher

	closeOnce sync.Once
}

// Launch attaches to opts.ControlURL when set, otherwise starts Chrome.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "browser"))

	b := &Browser{opts: opts}
	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		for _, f := range launchFlags {
			l = l.Set(flags.Flag(f))
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, eris.Wrap(err, "browser: launch chrome")
		}
		controlURL = u
		b.launched = l
		log.Debug("browser: launched chrome", zap.String("control_url", u), zap.Bool("headless", opts.Headless))
	}

	r := rod.New().ControlURL(controlURL).Context(ctx)
	if err := r.Connect(); err != nil {
		if b.launched != nil {
			b.launched.Kill()
		}
		return nil, eris.Wrap(err, "browser: connect to chrome")
	}
	// Detach from the launch context so cancelling it doesn't kill
	// in-flight pages; each Submit applies its own context.
	b.rod = r.Context(context.Background())
	log.Info("browser: connected", zap.Bool("attached", b.launched == nil))
	return b, nil
}

// Close kills Chrome if it was launched here. An attached browser is left
// running for its owner.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if b.launched == nil {
			return
		}
		if err := b.rod.Close(); err != nil {
			zap.L().Debug("browser: close", zap.Error(err))
		}
		b.launched.Kill()
		b.launched.Cleanup()
	})
	return nil
}
