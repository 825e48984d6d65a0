// Package telegram provides a minimal Telegram Bot API client for sending
// chat messages.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// MaxMessageLength is the Bot API limit for a text message, in UTF-16
// code units; counting runes stays within it for the scripts reports use.
const MaxMessageLength = 4096

// Client defines the Bot API operations used for reports.
type Client interface {
	// SendMessage posts text to chatID and returns the created message.
	SendMessage(ctx context.Context, chatID, text string) (*Message, error)
}

// Message is the subset of a Bot API Message returned by sendMessage.
type Message struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
	Chat      Chat  `json:"chat"`
}

// Chat identifies the conversation a message was sent to.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	StatusCode  int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: status %d: %s (retry after %ds)", e.StatusCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: status %d: %s", e.StatusCode, e.Description)
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool     `json:"ok"`
	Result      *Message `json:"result,omitempty"`
	ErrorCode   int      `json:"error_code,omitempty"`
	Description string   `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

// Option configures the Telegram client.
type Option func(*restyClient)

// WithBaseURL sets a custom API base URL (for testing or a local Bot API server).
func WithBaseURL(url string) Option {
	return func(c *restyClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *restyClient) {
		c.http.SetTimeout(d)
	}
}

type restyClient struct {
	token   string
	baseURL string
	http    *resty.Client
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string, opts ...Option) Client {
	c := &restyClient{
		token:   token,
		baseURL: "https://api.telegram.org",
		http: resty.New().
			SetTimeout(15*time.Second).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *restyClient) SendMessage(ctx context.Context, chatID, text string) (*Message, error) {
	if text == "" {
		return nil, eris.New("telegram: empty message")
	}

	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ChatID: chatID, Text: text, DisableWebPagePreview: true}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token))
	if err != nil {
		return nil, eris.Wrap(err, "telegram: send message")
	}

	if !out.OK || resp.StatusCode() != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Description: out.Description}
		if apiErr.Description == "" {
			apiErr.Description = strings.TrimSpace(resp.String())
		}
		if out.Parameters != nil {
			apiErr.RetryAfter = out.Parameters.RetryAfter
		}
		return nil, apiErr
	}
	if out.Result == nil {
		return &Message{}, nil
	}
	return out.Result, nil
}

// SplitMessage breaks text into chunks of at most limit runes, preferring
// line boundaries. A single line longer than limit is hard-split.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		for n > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}
