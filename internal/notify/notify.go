// Package notify delivers run reports to chat targets.
package notify

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/report"
	"github.com/sells-group/blockcheck/internal/resilience"
)

// Notifier sends a report somewhere.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, rep *model.Report) error
}

// Multi fans a report out to every notifier. Each target has its own
// circuit breaker and retry policy, and one failing target does not stop
// the others.
type Multi struct {
	targets  []Notifier
	breakers *resilience.ServiceBreakers
	retry    resilience.RetryConfig
}

// NewMulti wraps targets with per-target breakers.
func NewMulti(retry resilience.RetryConfig, circuit resilience.CircuitBreakerConfig, targets ...Notifier) *Multi {
	return &Multi{
		targets:  targets,
		breakers: resilience.NewServiceBreakers(circuit),
		retry:    retry,
	}
}

// forgetter is implemented by notifiers that keep per-run delivery state
// between attempts. Forget is called once delivery of a run is given up.
type forgetter interface {
	Forget(runID string)
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of configured targets.
func (m *Multi) Len() int { return len(m.targets) }

// Notify sends rep to every target and joins their errors.
func (m *Multi) Notify(ctx context.Context, rep *model.Report) error {
	var errs []error
	for _, n := range m.targets {
		cb := m.breakers.Get(n.Name())
		retry := m.retry
		retry.OnRetry = resilience.RetryLogger("notify", n.Name())

		err := cb.Execute(ctx, func(ctx context.Context) error {
			return resilience.Do(ctx, retry, func(ctx context.Context) error {
				return n.Notify(ctx, rep)
			})
		})
		if err != nil {
			if f, ok := n.(forgetter); ok {
				f.Forget(rep.RunID)
			}
			zap.L().Error("notify: delivery failed",
				zap.String("notifier", n.Name()),
				zap.String("run_id", rep.RunID),
				zap.Error(err),
			)
			errs = append(errs, eris.Wrapf(err, "notify: %s", n.Name()))
			continue
		}
		zap.L().Info("notify: report sent",
			zap.String("notifier", n.Name()),
			zap.String("run_id", rep.RunID),
		)
	}
	return errors.Join(errs...)
}

// States reports each target's breaker state.
func (m *Multi) States() map[string]resilience.CircuitState {
	return m.breakers.States()
}

// FromConfig builds a Multi from the notify section. It returns nil when no
// target is configured.
func FromConfig(cfg *config.Config) *Multi {
	msgOpts := report.MessageOptions{
		Title:       cfg.Report.Title,
		Location:    cfg.Report.Location(),
		OnlyChanges: cfg.Notify.OnlyChanges,
	}
	timeout := cfg.Notify.Timeout()

	var targets []Notifier
	if tg := cfg.Notify.Telegram; tg.BotToken != "" {
		targets = append(targets, NewTelegram(tg, msgOpts, timeout))
	}
	if wh := cfg.Notify.Webhook; wh.URL != "" {
		targets = append(targets, NewWebhook(wh.URL, msgOpts, timeout))
	}
	if len(targets) == 0 {
		return nil
	}
	return NewMulti(resilience.FromConfig(cfg.Retry), resilience.FromCircuitConfig(cfg.Circuit), targets...)
}
