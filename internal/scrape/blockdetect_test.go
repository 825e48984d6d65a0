package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock_CloudflareChallenge(t *testing.T) {
	html := `<html><head><title>Just a moment...</title></head><body><div id="cf-challenge-running"></div></body></html>`
	blocked, bt := DetectBlock(html)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_CheckingBrowser(t *testing.T) {
	blocked, bt := DetectBlock("<body>Checking your browser before accessing</body>")
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_Captcha(t *testing.T) {
	html := `<form><div class="g-recaptcha" data-sitekey="x"></div></form>`
	blocked, bt := DetectBlock(html)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_Turnstile(t *testing.T) {
	blocked, bt := DetectBlock(`<div class="cf-turnstile"></div>`)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_RateLimit(t *testing.T) {
	blocked, bt := DetectBlock("<h1>429 Too Many Requests</h1>")
	assert.True(t, blocked)
	assert.Equal(t, BlockRateLimit, bt)
}

func TestDetectBlock_JSShell(t *testing.T) {
	blocked, bt := DetectBlock(`<html><body><noscript>You need to enable JavaScript to run this app.</noscript><div id="root"></div></body></html>`)
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, bt)

	blocked, bt = DetectBlock(`<html><head><meta http-equiv="refresh" content="0;url=/check"></head></html>`)
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, bt)
}

func TestDetectBlock_CheckerForm(t *testing.T) {
	html := `<html><body><form><textarea id="domains" name="domains"></textarea></form><div id="results" class="mt-8"></div></body></html>`
	blocked, bt := DetectBlock(html)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

func TestDetectBlock_Empty(t *testing.T) {
	blocked, _ := DetectBlock("")
	assert.False(t, blocked)
}
