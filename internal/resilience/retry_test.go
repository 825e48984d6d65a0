package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blockcheck/internal/config"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("results not rendered"), 0)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(2), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("timeout"), 0)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_NonTransientNoRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return errors.New("element #domains not found")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(_ context.Context) error {
			calls++
			return NewTransientError(errors.New("busy"), 503)
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_CustomShouldRetryAndOnRetry(t *testing.T) {
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(error) bool { return true }
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return errors.New("anything")
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected retries [1 2], got %v", attempts)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	calls := 0
	html, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", context.DeadlineExceeded
		}
		return "<div>ok</div>", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "<div>ok</div>" {
		t.Errorf("unexpected value %q", html)
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := cfg.backoff(i); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i, w, got)
		}
	}

	cfg.JitterFraction = 0.25
	for i := 0; i < 100; i++ {
		got := cfg.backoff(0)
		if got < 750*time.Millisecond || got > 1250*time.Millisecond {
			t.Fatalf("jittered backoff out of range: %s", got)
		}
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := RetryConfig{JitterFraction: -1}.withDefaults()
	def := DefaultRetryConfig()
	if cfg.MaxAttempts != def.MaxAttempts || cfg.InitialBackoff != def.InitialBackoff ||
		cfg.MaxBackoff != def.MaxBackoff || cfg.Multiplier != def.Multiplier {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.JitterFraction != 0 {
		t.Errorf("negative jitter should clamp to 0, got %v", cfg.JitterFraction)
	}
}

func TestDelay_HonoursRetryAfter(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}

	hinted := NewTransientError(errors.New("429"), 429).WithRetryAfter(10 * time.Second)
	if got := cfg.delay(0, eris.Wrap(hinted, "notify: telegram")); got != 10*time.Second {
		t.Errorf("expected retry-after to win, got %s", got)
	}

	short := NewTransientError(errors.New("429"), 429).WithRetryAfter(time.Millisecond)
	if got := cfg.delay(1, short); got != 2*time.Second {
		t.Errorf("expected backoff to win over a shorter hint, got %s", got)
	}

	if got := cfg.delay(0, errors.New("plain")); got != time.Second {
		t.Errorf("expected plain backoff, got %s", got)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		MaxAttempts:      4,
		InitialBackoffMs: 200,
		MaxBackoffMs:     2000,
		Multiplier:       3,
		JitterFraction:   0.1,
	})
	if cfg.MaxAttempts != 4 || cfg.InitialBackoff != 200*time.Millisecond ||
		cfg.MaxBackoff != 2*time.Second || cfg.Multiplier != 3 || cfg.JitterFraction != 0.1 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	zero := FromConfig(config.RetryConfig{JitterFraction: -1})
	if zero.MaxAttempts != 3 || zero.JitterFraction != 0.25 {
		t.Errorf("zero section should keep defaults: %+v", zero)
	}
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(config.CircuitConfig{FailureThreshold: 2, ResetTimeoutSecs: 10})
	if cfg.FailureThreshold != 2 || cfg.ResetTimeout != 10*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}
	def := FromCircuitConfig(config.CircuitConfig{})
	if def.FailureThreshold != 5 || def.ResetTimeout != 5*time.Minute {
		t.Errorf("unexpected defaults: %+v", def)
	}
}
