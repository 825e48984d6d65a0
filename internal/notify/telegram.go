package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blockcheck/internal/config"
	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/report"
	"github.com/sells-group/blockcheck/internal/resilience"
	"github.com/sells-group/blockcheck/pkg/telegram"
)

// Telegram posts the report message to a Telegram chat.
type Telegram struct {
	client telegram.Client
	chatID string
	opts   report.MessageOptions

	mu sync.Mutex
	// delivered counts parts already sent per run, so a retried Notify
	// resumes where the failed attempt stopped.
	delivered map[string]int
}

// NewTelegram builds a Telegram notifier from its config section.
func NewTelegram(cfg config.TelegramConfig, opts report.MessageOptions, timeout time.Duration) *Telegram {
	clientOpts := []telegram.Option{}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, telegram.WithBaseURL(cfg.BaseURL))
	}
	if timeout > 0 {
		clientOpts = append(clientOpts, telegram.WithTimeout(timeout))
	}
	return NewTelegramWithClient(telegram.NewClient(cfg.BotToken, clientOpts...), cfg.ChatID, opts)
}

// NewTelegramWithClient builds a Telegram notifier around an existing client.
func NewTelegramWithClient(client telegram.Client, chatID string, opts report.MessageOptions) *Telegram {
	return &Telegram{client: client, chatID: chatID, opts: opts, delivered: make(map[string]int)}
}

// Name implements Notifier.
func (t *Telegram) Name() string { return "telegram" }

// Notify sends the report, split into as many messages as the length
// limit requires.
func (t *Telegram) Notify(ctx context.Context, rep *model.Report) error {
	text := report.Message(rep, t.opts)
	parts := telegram.SplitMessage(text, telegram.MaxMessageLength)

	t.mu.Lock()
	start := t.delivered[rep.RunID]
	t.mu.Unlock()

	for i := start; i < len(parts); i++ {
		if _, err := t.client.SendMessage(ctx, t.chatID, parts[i]); err != nil {
			t.mu.Lock()
			t.delivered[rep.RunID] = i
			t.mu.Unlock()

			var apiErr *telegram.APIError
			if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
				return resilience.NewTransientError(err, apiErr.StatusCode).
					WithRetryAfter(time.Duration(apiErr.RetryAfter) * time.Second)
			}
			if !resilience.IsTransient(err) {
				t.Forget(rep.RunID)
			}
			return eris.Wrapf(err, "notify: telegram part %d", i+1)
		}
	}

	t.Forget(rep.RunID)
	return nil
}

// Forget drops the resume point kept for a run.
func (t *Telegram) Forget(runID string) {
	t.mu.Lock()
	delete(t.delivered, runID)
	t.mu.Unlock()
}

func (t *Telegram) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.delivered)
}
