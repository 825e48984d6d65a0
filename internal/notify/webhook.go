package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blockcheck/internal/model"
	"github.com/sells-group/blockcheck/internal/report"
	"github.com/sells-group/blockcheck/internal/resilience"
)

// WebhookPayload is the JSON body posted to a generic webhook. Slack-style
// receivers only read "text".
type WebhookPayload struct {
	Text    string         `json:"text"`
	RunID   string         `json:"run_id"`
	Summary string         `json:"summary"`
	Results []model.Result `json:"results"`
	Changes []model.Change `json:"changes,omitempty"`
}

// Webhook posts the report as JSON to a URL.
type Webhook struct {
	url  string
	http *resty.Client
	opts report.MessageOptions
}

// NewWebhook builds a webhook notifier.
func NewWebhook(url string, opts report.MessageOptions, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:  url,
		http: resty.New().SetTimeout(timeout),
		opts: opts,
	}
}

// Name implements Notifier.
func (w *Webhook) Name() string { return "webhook" }

// Notify posts the payload. Retryable HTTP statuses come back transient.
func (w *Webhook) Notify(ctx context.Context, rep *model.Report) error {
	payload := WebhookPayload{
		Text:    report.Message(rep, w.opts),
		RunID:   rep.RunID,
		Summary: report.Summary(rep),
		Results: rep.Results,
		Changes: rep.Changes,
	}
	resp, err := w.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	if resp.IsError() {
		err := eris.Errorf("notify: webhook returned status %d", resp.StatusCode())
		if resilience.IsTransientHTTPStatus(resp.StatusCode()) {
			return resilience.NewTransientError(err, resp.StatusCode())
		}
		return err
	}
	return nil
}
