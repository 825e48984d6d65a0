// Package runner checks a domain list against the checker and turns the
// scraped output into a stored, notified report.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/blockcheck/internal/browser"
	"github.com/sells-group/blockcheck/internal/classify"
	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/notify"
	"github.com/sells-group/blockcheck/internal/resilience"
	"github.com/sells-group/blockcheck/internal/scrape"
	"github.com/sells-group/blockcheck/internal/store"
)

// Options configures a Runner.
type Options struct {
	BatchSize     int
	Pages         int
	RatePerMinute int
	RowSelector   string
	Retry         resilience.RetryConfig
	OnlyChanges   bool
	Retention     time.Duration

	// Store and Notifier may be nil.
	Store    store.Store
	Notifier notify.Notifier

	// OnResult is called once per result as soon as its batch finishes.
	// Calls are serialised.
	OnResult func(model.Result)
}

// OptionsFromConfig fills the tuning fields of Options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:     cfg.Checker.BatchSize,
		Pages:         cfg.Checker.Pages,
		RatePerMinute: cfg.Checker.RatePerMinute,
		RowSelector:   cfg.Checker.RowSelector,
		Retry:         resilience.FromConfig(cfg.Retry),
		OnlyChanges:   cfg.Notify.OnlyChanges,
		Retention:     time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour,
	}
}

// Runner runs checks. It is safe for concurrent use.
type Runner struct {
	sub  browser.Submitter
	cls  *classify.Classifier
	opts Options
	pace *pacer

	resultMu sync.Mutex

	notifyFailures atomic.Int64

	now   func() time.Time
	newID func() string
}

// New creates a Runner.
func New(sub browser.Submitter, cls *classify.Classifier, opts Options) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if cls == nil {
		cls = classify.New(nil, nil)
	}
	return &Runner{
		sub:   sub,
		cls:   cls,
		opts:  opts,
		pace:  newPacer(opts.RatePerMinute),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// NotifyFailures returns how many notifications have failed so far.
func (r *Runner) NotifyFailures() int64 {
	return r.notifyFailures.Load()
}

// Run checks domains and returns the report. A domain whose check fails
// gets an Error result; that never fails the run. When the store fails,
// the report is still returned alongside the error. Cancelling ctx aborts
// the run with no report.
func (r *Runner) Run(ctx context.Context, domains []string) (*model.Report, error) {
	if len(domains) == 0 {
		return nil, eris.New("runner: no domains to check")
	}

	rep := &model.Report{
		RunID:     r.newID(),
		StartedAt: r.now(),
		Results:   make([]model.Result, len(domains)),
	}
	log := zap.L().With(zap.String("component", "runner"), zap.String("run_id", rep.RunID))
	log.Info("runner: starting run", zap.Int("domains", len(domains)), zap.Int("batch_size", r.opts.BatchSize))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Pages)
	for start := 0; start < len(domains); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(domains))
		batch := domains[start:end]
		g.Go(func() error {
			results := r.checkBatch(gctx, rep.RunID, batch)
			copy(rep.Results[start:end], results)
			r.emit(results)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "runner: run cancelled")
	}
	rep.FinishedAt = r.now()

	counts := rep.Counts()
	log.Info("runner: run complete",
		zap.Int("blocked", counts[model.StatusBlocked]),
		zap.Int("not_blocked", counts[model.StatusNotBlocked]),
		zap.Int("unknown", counts[model.StatusUnknown]),
		zap.Int("error", counts[model.StatusError]),
		zap.Duration("duration", rep.Duration()),
	)

	storeErr := r.persist(ctx, rep, domains)
	r.notify(ctx, rep)
	return rep, storeErr
}

func (r *Runner) checkBatch(ctx context.Context, runID string, batch []string) []model.Result {
	retry := r.opts.Retry
	retry.OnRetry = resilience.RetryLogger("runner", "submit")

	html, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		if err := r.pace.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "runner: rate limit wait")
		}
		out, err := r.sub.Submit(ctx, batch)
		var blocked *browser.BlockedError
		switch {
		case errors.As(err, &blocked):
			r.pace.OnBlocked()
		case err == nil:
			r.pace.OnSuccess()
		}
		return out, err
	})

	at := r.now()
	results := make([]model.Result, len(batch))
	if err != nil {
		zap.L().Warn("runner: batch failed", zap.Strings("domains", batch), zap.Error(err))
		for i, d := range batch {
			results[i] = model.FailedResult(d, err, at)
			results[i].RunID = runID
		}
		return results
	}

	parsed, err := scrape.ParseResults(html, batch, r.opts.RowSelector)
	if err != nil {
		for i, d := range batch {
			results[i] = model.FailedResult(d, err, at)
			results[i].RunID = runID
		}
		return results
	}

	for i, d := range batch {
		raw := parsed[d]
		results[i] = model.Result{
			Domain:    d,
			Status:    r.cls.ClassifyDomain(d, raw),
			Raw:       raw,
			CheckedAt: at,
			RunID:     runID,
		}
	}
	return results
}

func (r *Runner) emit(results []model.Result) {
	if r.opts.OnResult == nil {
		return
	}
	r.resultMu.Lock()
	defer r.resultMu.Unlock()
	for _, res := range results {
		r.opts.OnResult(res)
	}
}

func (r *Runner) persist(ctx context.Context, rep *model.Report, domains []string) error {
	if r.opts.Store == nil {
		return nil
	}
	prev, err := r.opts.Store.LatestStatuses(ctx, domains)
	if err != nil {
		return eris.Wrap(err, "runner: load previous statuses")
	}
	rep.Changes = rep.Diff(prev)
	if err := r.opts.Store.SaveRun(ctx, rep); err != nil {
		return eris.Wrap(err, "runner: save run")
	}
	return nil
}

func (r *Runner) notify(ctx context.Context, rep *model.Report) {
	if r.opts.Notifier == nil {
		return
	}
	if r.opts.OnlyChanges && len(rep.Changes) == 0 {
		zap.L().Debug("runner: no status changes, skipping notification", zap.String("run_id", rep.RunID))
		return
	}
	if err := r.opts.Notifier.Notify(ctx, rep); err != nil {
		r.notifyFailures.Add(1)
		zap.L().Error("runner: notification failed", zap.String("run_id", rep.RunID), zap.Error(err))
	}
}
