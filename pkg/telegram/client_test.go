package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)

		var body sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "-100200", body.ChatID)
		assert.Equal(t, "example.com -> Blocked", body.Text)
		assert.True(t, body.DisableWebPagePreview)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":-100200,"type":"group"}}}`))
	}))
	defer srv.Close()

	client := NewClient("123:abc", WithBaseURL(srv.URL+"/"))
	msg, err := client.SendMessage(context.Background(), "-100200", "example.com -> Blocked")

	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.MessageID)
	assert.Equal(t, int64(-100200), msg.Chat.ID)
}

func TestSendMessage_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	client := NewClient("t", WithBaseURL(srv.URL))
	_, err := client.SendMessage(context.Background(), "1", "hi")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Description, "chat not found")
}

func TestSendMessage_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`))
	}))
	defer srv.Close()

	client := NewClient("t", WithBaseURL(srv.URL))
	_, err := client.SendMessage(context.Background(), "1", "hi")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, 3, apiErr.RetryAfter)
	assert.Contains(t, apiErr.Error(), "retry after 3s")
}

func TestSendMessage_NonJSONError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := NewClient("t", WithBaseURL(srv.URL))
	_, err := client.SendMessage(context.Background(), "1", "hi")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Description)
}

func TestSendMessage_Empty(t *testing.T) {
	t.Parallel()

	client := NewClient("t", WithBaseURL("http://127.0.0.1:1"))
	_, err := client.SendMessage(context.Background(), "1", "")
	assert.Error(t, err)
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	text := "aaaa\nbbbb\ncccc\n"
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, SplitMessage(text, 10))

	long := strings.Repeat("é", 25)
	chunks := SplitMessage(long, 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, long, strings.Join(chunks, ""))
}

func TestSplitMessage_DefaultLimit(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("x", 100) + "\n"
	chunks := SplitMessage(strings.Repeat(line, 50), 0)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), MaxMessageLength)
	}
}
