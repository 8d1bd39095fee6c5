package crawler

import (
	"net/url"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-audit/internal/extract"
	"github.com/sells-group/site-audit/internal/scrape"
)

// DefaultPriorityTokens mark URLs that carry the most audit signal.
var DefaultPriorityTokens = []string{"about", "contact", "service", "project", "portfolio", "team"}

// Entry is a queued URL.
type Entry struct {
	URL          string
	Depth        int
	HighPriority bool
}

// Frontier is the crawl queue. It owns the visited set: a URL is queued at
// most once and popped at most once. Only URLs with the seed's origin
// (scheme and host, ignoring a leading "www.") are accepted.
type Frontier struct {
	origin  string
	tokens  []string
	exclude *scrape.PathMatcher

	queue   []Entry
	queued  map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier creates a frontier for the site of seed. The seed itself is
// not queued.
func NewFrontier(seed string, tokens []string, exclude *scrape.PathMatcher) (*Frontier, error) {
	u, err := url.Parse(seed)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: parse seed")
	}
	if u.Host == "" {
		return nil, eris.Errorf("crawl: seed %q has no host", seed)
	}
	if exclude == nil {
		exclude = scrape.NewPathMatcher(nil)
	}
	lowered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &Frontier{
		origin:  extract.SiteOrigin(u),
		tokens:  lowered,
		exclude: exclude,
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}, nil
}

// Key returns the identity of a URL in the frontier: the normalized link
// with any trailing slash after a non-root path removed. ok is false for
// non-http(s) URLs.
func Key(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return extract.NormalizeLink(u)
}

// Seed queues the crawl's start URL, bypassing path exclusion.
func (f *Frontier) Seed(raw string) bool {
	key, ok := Key(raw)
	if !ok || f.seen(key) {
		return false
	}
	norm, _ := url.Parse(raw)
	if extract.SiteOrigin(norm) != f.origin {
		return false
	}
	f.queued[key] = struct{}{}
	f.queue = append(f.queue, Entry{URL: raw, HighPriority: f.IsHighPriority(raw)})
	return true
}

// Push queues raw if it shares the seed's origin, is not excluded and not
// already seen. It reports whether the URL was queued.
func (f *Frontier) Push(raw string, depth int) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	norm, ok := extract.NormalizeLink(u)
	if !ok || extract.SiteOrigin(u) != f.origin {
		return false
	}
	key, _ := Key(norm)
	if f.seen(key) || f.exclude.IsExcluded(norm) {
		return false
	}
	f.queued[key] = struct{}{}
	f.queue = append(f.queue, Entry{URL: norm, Depth: depth, HighPriority: f.IsHighPriority(norm)})
	return true
}

// Pop removes the next unvisited entry and marks it visited.
func (f *Frontier) Pop() (Entry, bool) {
	for len(f.queue) > 0 {
		e := f.queue[0]
		f.queue = f.queue[1:]
		key, _ := Key(e.URL)
		delete(f.queued, key)
		if _, done := f.visited[key]; done {
			continue
		}
		f.visited[key] = struct{}{}
		return e, true
	}
	return Entry{}, false
}

// Next pops up to n entries.
func (f *Frontier) Next(n int) []Entry {
	out := make([]Entry, 0, min(n, len(f.queue)))
	for len(out) < n {
		e, ok := f.Pop()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// Seen reports whether raw has been queued or visited.
func (f *Frontier) Seen(raw string) bool {
	key, ok := Key(raw)
	return ok && f.seen(key)
}

func (f *Frontier) seen(key string) bool {
	if _, ok := f.visited[key]; ok {
		return true
	}
	_, ok := f.queued[key]
	return ok
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int { return len(f.queue) }

// Resort moves high-priority entries ahead of the rest, keeping discovery
// order within each group.
func (f *Frontier) Resort() {
	slices.SortStableFunc(f.queue, func(a, b Entry) int {
		switch {
		case a.HighPriority == b.HighPriority:
			return 0
		case a.HighPriority:
			return -1
		}
		return 1
	})
}

// IsHighPriority reports whether raw contains a priority token.
func (f *Frontier) IsHighPriority(raw string) bool {
	lower := strings.ToLower(raw)
	for _, t := range f.tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
