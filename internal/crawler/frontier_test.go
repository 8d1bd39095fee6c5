package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/scrape"
)

func newTestFrontier(t *testing.T) *Frontier {
	t.Helper()
	f, err := NewFrontier("https://www.acme.com/", DefaultPriorityTokens, nil)
	require.NoError(t, err)
	return f
}

func TestFrontier_NoRepeat(t *testing.T) {
	f := newTestFrontier(t)
	pushes := []string{
		"https://acme.com/a", "https://acme.com/a", "https://acme.com/a/",
		"https://ACME.com/a#frag", "https://acme.com/b", "https://acme.com/a",
	}
	for _, u := range pushes {
		f.Push(u, 1)
	}

	popped := map[string]int{}
	for {
		e, ok := f.Pop()
		if !ok {
			break
		}
		popped[e.URL]++
		// Re-pushing a popped URL is rejected.
		assert.False(t, f.Push(e.URL, 2))
	}
	assert.Equal(t, map[string]int{"https://acme.com/a": 1, "https://acme.com/b": 1}, popped)
}

func TestFrontier_SameSiteOnly(t *testing.T) {
	f := newTestFrontier(t)
	assert.True(t, f.Push("https://acme.com/x", 1))
	assert.True(t, f.Push("https://www.acme.com/y", 1))
	assert.False(t, f.Push("http://www.acme.com/z", 1))
	assert.False(t, f.Push("https://shop.acme.com/z", 1))
	assert.False(t, f.Push("https://other.com/", 1))
	assert.False(t, f.Push("mailto:hi@acme.com", 1))
	assert.False(t, f.Push("javascript:void(0)", 1))
	assert.Equal(t, 2, f.Len())
}

func TestFrontier_SchemeMustMatchSeed(t *testing.T) {
	f, err := NewFrontier("http://acme.com/", nil, nil)
	require.NoError(t, err)
	assert.True(t, f.Seed("http://acme.com/"))
	assert.False(t, f.Push("https://acme.com/about", 1))
	assert.True(t, f.Push("http://www.acme.com/about", 1))
	assert.Equal(t, 2, f.Len())
}

func TestFrontier_Seen(t *testing.T) {
	f := newTestFrontier(t)
	assert.False(t, f.Seen("https://acme.com/a"))
	f.Push("https://acme.com/a", 1)
	assert.True(t, f.Seen("https://acme.com/a/"))
	_, _ = f.Pop()
	assert.True(t, f.Seen("https://acme.com/a"))
	assert.False(t, f.Seen("tel:123"))
}

func TestFrontier_ResortStable(t *testing.T) {
	f := newTestFrontier(t)
	for _, p := range []string{"/x1", "/about", "/x2", "/contact-us", "/x3", "/our-team"} {
		f.Push("https://acme.com"+p, 1)
	}
	f.Resort()

	var order []string
	for _, e := range f.Next(10) {
		order = append(order, e.URL)
	}
	assert.Equal(t, []string{
		"https://acme.com/about",
		"https://acme.com/contact-us",
		"https://acme.com/our-team",
		"https://acme.com/x1",
		"https://acme.com/x2",
		"https://acme.com/x3",
	}, order)
}

func TestFrontier_PriorityCaseInsensitive(t *testing.T) {
	f := newTestFrontier(t)
	assert.True(t, f.IsHighPriority("https://acme.com/About-Us"))
	assert.True(t, f.IsHighPriority("https://acme.com/our-services"))
	assert.False(t, f.IsHighPriority("https://acme.com/pricing"))
}

func TestFrontier_NextBounded(t *testing.T) {
	f := newTestFrontier(t)
	for _, p := range []string{"/1", "/2", "/3"} {
		f.Push("https://acme.com"+p, 1)
	}
	assert.Len(t, f.Next(2), 2)
	assert.Equal(t, 1, f.Len())
	assert.Len(t, f.Next(5), 1)
	assert.Empty(t, f.Next(5))
}

func TestFrontier_Exclusions(t *testing.T) {
	f, err := NewFrontier("https://acme.com/", nil, scrape.NewPathMatcher([]string{"/wp-admin/*", "*.pdf"}))
	require.NoError(t, err)
	assert.True(t, f.Seed("https://acme.com/"))
	assert.False(t, f.Seed("https://acme.com/"))
	assert.False(t, f.Push("https://acme.com/wp-admin/login", 1))
	assert.True(t, f.Push("https://acme.com/services", 1))
}

func TestNewFrontier_InvalidSeed(t *testing.T) {
	_, err := NewFrontier("/relative/only", nil, nil)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"https://Acme.com", "https://acme.com/", true},
		{"https://acme.com/a/", "https://acme.com/a", true},
		{"https://acme.com/a?x=1#top", "https://acme.com/a?x=1", true},
		{"ftp://acme.com/file", "", false},
	}
	for _, tt := range tests {
		got, ok := Key(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
