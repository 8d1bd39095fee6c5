package crawler

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/model"
)

// Prober checks a site's reachability and crawl hints before a crawl.
type Prober struct {
	http      *http.Client
	userAgent string
}

// NewProber creates a Prober. A nil client gets a 15s default.
func NewProber(hc *http.Client, userAgent string) *Prober {
	if hc == nil {
		hc = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &Prober{http: hc, userAgent: userAgent}
}

// Probe requests the homepage and checks robots.txt and sitemap.xml in
// parallel. An unreachable site is a result, not an error.
func (p *Prober) Probe(ctx context.Context, rawURL string) (*model.ProbeResult, error) {
	seed, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	result := &model.ProbeResult{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seed, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: create probe request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return result, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 256*1024))
	_ = resp.Body.Close()

	result.Reachable = true
	result.StatusCode = resp.StatusCode
	result.FinalURL = resp.Request.URL.String()

	final, err := url.Parse(result.FinalURL)
	if err != nil {
		return result, nil
	}
	root := final.Scheme + "://" + final.Host

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.HasRobots = p.exists(gctx, root+"/robots.txt")
		return nil
	})
	g.Go(func() error {
		result.HasSitemap = p.exists(gctx, root+"/sitemap.xml")
		return nil
	})
	_ = g.Wait()

	return result, nil
}

// exists sends HEAD, falling back to GET for servers that refuse HEAD.
func (p *Prober) exists(ctx context.Context, target string) bool {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return false
		}
		req.Header.Set("User-Agent", p.userAgent)

		resp, err := p.http.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			return resp.StatusCode == http.StatusOK
		}
	}
	return false
}
