package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blockcheck/internal/browser"
	"github.com/sells-group/blockcheck/internal/classify"
	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/notify"
	"github.com/sells-group/blockcheck/internal/runner"
	"github.com/sells-group/blockcheck/internal/store"
)

// checkEnv holds everything the check/watch/serve commands share.
type checkEnv struct {
	Store    store.Store // nil when store.driver=none
	Notifier *notify.Multi
	Browser  *browser.Browser
	Runner   *runner.Runner
}

// Close releases the browser and store.
func (e *checkEnv) Close() {
	if e.Browser != nil {
		_ = e.Browser.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

type envOptions struct {
	noNotify bool
	onResult func(model.Result)
}

// initEnv validates the config for mode, then opens the store, builds the
// notifiers, launches the browser and wires the runner. Callers should
// defer env.Close().
func initEnv(ctx context.Context, mode string, opts envOptions) (*checkEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &checkEnv{}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	env.Store = st
	if st == nil {
		zap.L().Info("history disabled (store.driver=none)")
	}

	if !opts.noNotify {
		env.Notifier = notify.FromConfig(cfg)
	}
	if env.Notifier == nil {
		zap.L().Debug("no notifier configured")
	}

	b, err := browser.Launch(ctx, browser.OptionsFromConfig(cfg.Checker))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Browser = b

	ropts := runner.OptionsFromConfig(cfg)
	ropts.OnResult = opts.onResult
	if env.Store != nil {
		ropts.Store = env.Store
	}
	if env.Notifier != nil {
		ropts.Notifier = env.Notifier
	}
	env.Runner = runner.New(b, classify.FromConfig(cfg.Classify), ropts)
	return env, nil
}
