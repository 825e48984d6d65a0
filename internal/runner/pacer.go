package runner

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// pacer spaces checker submissions. It backs off when the checker answers
// with an anti-bot page and recovers toward the configured rate on
// success. The rate never exceeds the configured one or drops below a
// quarter of it.
type pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	minRate rate.Limit
	current rate.Limit
}

// newPacer returns nil for perMinute <= 0, which means unlimited.
func newPacer(perMinute int) *pacer {
	if perMinute <= 0 {
		return nil
	}
	initial := rate.Limit(float64(perMinute) / 60)
	return &pacer{
		limiter: rate.NewLimiter(initial, 1),
		initial: initial,
		minRate: initial / 4,
		current: initial,
	}
}

func (p *pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%, up to the configured rate.
func (p *pacer) OnSuccess() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current >= p.initial {
		return
	}
	next := p.current * 1.2
	if next > p.initial {
		next = p.initial
	}
	p.current = next
	p.limiter.SetLimit(next)
}

// OnBlocked halves the rate.
func (p *pacer) OnBlocked() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.current * 0.5
	if next < p.minRate {
		next = p.minRate
	}
	p.current = next
	p.limiter.SetLimit(next)
	zap.L().Warn("runner: checker blocked us, slowing down",
		zap.Float64("per_minute", float64(next)*60),
	)
}

// Limit returns the current rate in events per second.
func (p *pacer) Limit() rate.Limit {
	if p == nil {
		return rate.Inf
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
