package runner

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Watch runs a check immediately and then every interval until ctx is
// cancelled. load is called at the start of each cycle so edits to the
// domain list are picked up without a restart. A failing cycle is logged
// and the loop carries on. After each cycle, history older than the
// retention window is pruned.
func (r *Runner) Watch(ctx context.Context, interval time.Duration, load func() ([]string, error)) error {
	if interval <= 0 {
		return eris.New("runner: watch interval must be positive")
	}
	log := zap.L().With(zap.String("component", "runner"))
	log.Info("runner: watching", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.cycle(ctx, load)

		select {
		case <-ctx.Done():
			log.Info("runner: watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) cycle(ctx context.Context, load func() ([]string, error)) {
	log := zap.L().With(zap.String("component", "runner"))

	domains, err := load()
	if err != nil {
		log.Error("runner: load domains", zap.Error(err))
		return
	}
	if len(domains) == 0 {
		log.Warn("runner: domain list is empty, skipping cycle")
		return
	}

	if _, err := r.Run(ctx, domains); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("runner: cycle failed", zap.Error(err))
	}

	if r.opts.Store == nil || r.opts.Retention <= 0 {
		return
	}
	cutoff := r.now().Add(-r.opts.Retention)
	n, err := r.opts.Store.Prune(ctx, cutoff)
	if err != nil {
		log.Warn("runner: prune history", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("runner: pruned history", zap.Int("results", n), zap.Time("before", cutoff))
	}
}
