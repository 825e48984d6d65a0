package scrape

import (
	"strings"
)

// BlockType describes the kind of interstitial served instead of the checker.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockRateLimit  BlockType = "rate_limit"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks rendered page HTML for anti-bot pages that stand in
// front of the checker form.
func DetectBlock(html string) (bool, BlockType) {
	lower := strings.ToLower(html)

	// Cloudflare challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cf-challenge") ||
		strings.Contains(lower, "just a moment...") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	// Captcha markers.
	if strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "h-captcha") ||
		strings.Contains(lower, "cf-turnstile") ||
		strings.Contains(lower, "please complete the captcha") {
		return true, BlockCaptcha
	}

	if strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "rate limit exceeded") {
		return true, BlockRateLimit
	}

	// The front-end never booted: only the noscript shell or a meta
	// refresh bounce was rendered.
	if len(html) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "enable javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
