package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of interstitial served instead of the page.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// interstitialMaxBytes bounds how large a captcha or JS-shell page can be.
// Real pages embedding a captcha widget on a form are larger than this.
const interstitialMaxBytes = 4096

// DetectBlock checks a response for anti-bot interstitials. header may be nil
// when the renderer does not expose response headers.
func DetectBlock(status int, header http.Header, body []byte) (bool, BlockType) {
	if (status == http.StatusForbidden || status == http.StatusServiceUnavailable) && header != nil {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" ||
			strings.EqualFold(header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cf-chl-") {
		return true, BlockCloudflare
	}

	if len(body) < interstitialMaxBytes {
		if strings.Contains(lower, "captcha") {
			return true, BlockCaptcha
		}
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
