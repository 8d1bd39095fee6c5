package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_IsExcluded(t *testing.T) {
	t.Parallel()
	m := NewPathMatcher([]string{"/blog/*", "/*.pdf", " /Careers/* ", ""})

	tests := []struct {
		name     string
		url      string
		excluded bool
	}{
		{"blog post", "https://acme.com/blog/post1", true},
		{"blog root", "https://acme.com/blog", true},
		{"blog deep path", "https://acme.com/blog/2024/01/post", true},
		{"careers mixed case", "https://acme.com/CAREERS/job1", true},
		{"pdf file", "https://acme.com/report.pdf", true},
		{"about page", "https://acme.com/about", false},
		{"homepage", "https://acme.com", false},
		{"nested pdf", "https://acme.com/docs/report.pdf", false},
		{"blogger is not blog", "https://acme.com/blogger", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.excluded, m.IsExcluded(tt.url))
		})
	}
	assert.Equal(t, []string{"/blog/*", "/*.pdf", "/careers/*"}, m.Patterns())
}

func TestPathMatcher_NoPatternsExcludesNothing(t *testing.T) {
	m := NewPathMatcher(nil)
	assert.False(t, m.IsExcluded("https://acme.com/blog/post"))
	assert.False(t, m.IsExcluded("://invalid"))
}

func TestPathMatcher_InvalidURL(t *testing.T) {
	m := NewPathMatcher([]string{"/blog/*"})
	assert.True(t, m.IsExcluded("://invalid"))
}

func TestDetectBlock(t *testing.T) {
	bigPage := "<html><body>" + strings.Repeat("<p>services and pricing</p>", 300) +
		`<div class="g-recaptcha"></div></body></html>`

	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare 403 ray", 403, http.Header{"Cf-Ray": {"abc"}}, "", BlockCloudflare},
		{"cloudflare 503 server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge body", 200, nil, "<html>Checking your browser before accessing</html>", BlockCloudflare},
		{"small captcha page", 200, http.Header{}, "<html>Please complete the reCAPTCHA</html>", BlockCaptcha},
		{"js shell", 200, nil, "<html><noscript>Enable JavaScript to continue</noscript></html>", BlockJSShell},
		{"meta refresh", 200, nil, `<html><meta http-equiv="refresh" content="0;url=/x"></html>`, BlockJSShell},
		{"large page with captcha widget", 200, nil, bigPage, BlockNone},
		{"plain 403 without cf headers", 403, http.Header{}, strings.Repeat("x", 5000), BlockNone},
		{"normal page", 200, http.Header{}, "<html><body><h1>Welcome</h1></body></html>", BlockNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			blocked, bt := DetectBlock(tt.status, tt.header, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}
