// Package scrape holds URL and response screening shared by the renderers
// and the crawl frontier.
package scrape

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher filters URLs by glob-style path patterns. A pattern ending in
// "/*" also matches every deeper path, so "/blog/*" matches "/blog/a/b".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher. With no patterns nothing is excluded.
func NewPathMatcher(patterns []string) *PathMatcher {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns, lower-cased.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether rawURL matches any pattern. Unparseable URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	if len(m.patterns) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	if p == "" {
		p = "/"
	}
	for _, pattern := range m.patterns {
		if matchSegmented(pattern, p) {
			return true
		}
	}
	return false
}

func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
	}
	return false
}
