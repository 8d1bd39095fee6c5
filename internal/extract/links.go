package extract

import (
	"net/url"
	"strings"
)

// SiteHost returns the host used for same-site comparison: lower-cased,
// port kept, with a leading "www." removed.
func SiteHost(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// SiteOrigin is the scheme plus SiteHost, e.g. "https://acme.com".
func SiteOrigin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + SiteHost(u)
}

// SameSite reports whether two URLs share a site host.
func SameSite(a, b *url.URL) bool {
	return SiteHost(a) == SiteHost(b)
}

// NormalizeLink returns the canonical form of an http(s) URL: scheme and host
// lower-cased, fragment dropped, empty path set to "/". ok is false for other
// schemes.
func NormalizeLink(u *url.URL) (string, bool) {
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", false
	}
	c := *u
	c.Scheme = scheme
	c.Host = strings.ToLower(c.Host)
	c.Fragment = ""
	c.RawFragment = ""
	c.User = nil
	if c.Path == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return c.String(), true
}

// LinkSet is the classification of a page's anchors.
type LinkSet struct {
	// SameSite holds unique, normalized same-site URLs in document order.
	SameSite      []string
	InternalCount int
	ExternalCount int
}

// ClassifyLinks resolves hrefs against base and splits them into same-site
// and external links. Non-http(s) hrefs are ignored.
func ClassifyLinks(base *url.URL, hrefs []string) LinkSet {
	var set LinkSet
	seen := make(map[string]struct{}, len(hrefs))
	for _, h := range hrefs {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		ref, err := url.Parse(h)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		norm, ok := NormalizeLink(abs)
		if !ok {
			continue
		}
		if !SameSite(abs, base) {
			set.ExternalCount++
			continue
		}
		set.InternalCount++
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		set.SameSite = append(set.SameSite, norm)
	}
	return set
}
