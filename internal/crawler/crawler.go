// Package crawler drives a site crawl: a priority-aware Frontier feeds fixed
// size batches of URLs to one shared render session and the results are
// extracted into CrawledPages.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/extract"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/render"
	"github.com/sells-group/site-audit/internal/scrape"
)

// DefaultBatchSize is the number of pages fetched concurrently.
const DefaultBatchSize = 5

// ErrRendererUnavailable is returned when no render session can be opened.
// It is the only error that aborts a crawl.
var ErrRendererUnavailable = eris.New("crawl: renderer unavailable")

// PageFunc is called once per crawled page, in result order, with the number
// of pages collected so far.
type PageFunc func(page model.CrawledPage, collected int)

// Crawler crawls websites through a Renderer.
type Crawler struct {
	renderer render.Renderer
	cfg      config.CrawlConfig
	exclude  *scrape.PathMatcher
	onPage   PageFunc
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithOnPage sets a progress callback.
func WithOnPage(fn PageFunc) Option {
	return func(c *Crawler) { c.onPage = fn }
}

// New creates a Crawler.
func New(r render.Renderer, cfg config.CrawlConfig, opts ...Option) *Crawler {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if len(cfg.PriorityTokens) == 0 {
		cfg.PriorityTokens = DefaultPriorityTokens
	}
	c := &Crawler{
		renderer: r,
		cfg:      cfg,
		exclude:  scrape.NewPathMatcher(cfg.ExcludePaths),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NormalizeURL adds an https scheme when raw has none and a "/" path when
// it has no path.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("crawl: empty url")
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrap(err, "crawl: parse url")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Host == "" {
		return "", eris.Errorf("crawl: url %q has no host", raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

type fetched struct {
	entry Entry
	page  model.CrawledPage
}

// CrawlWebsite crawls the site at baseURL and returns at most maxPages pages,
// homepage first. Pages that fail to render are dropped. The only fatal
// error is failing to open a render session; a cancelled ctx ends the crawl
// early with the pages collected so far.
func (c *Crawler) CrawlWebsite(ctx context.Context, baseURL string, maxPages int) ([]model.CrawledPage, error) {
	pages := make([]model.CrawledPage, 0, max(maxPages, 0))
	if maxPages <= 0 {
		return pages, nil
	}

	seed, err := NormalizeURL(baseURL)
	if err != nil {
		return nil, err
	}
	frontier, err := NewFrontier(seed, c.cfg.PriorityTokens, c.exclude)
	if err != nil {
		return nil, err
	}
	frontier.Seed(seed)

	session, err := c.renderer.Open(ctx)
	if err != nil {
		return nil, eris.Wrap(ErrRendererUnavailable, err.Error())
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			zap.L().Warn("crawl: close render session", zap.Error(cerr))
		}
	}()

	log := zap.L().With(zap.String("site", seed))
	log.Info("crawl: starting", zap.Int("max_pages", maxPages), zap.Int("batch_size", c.cfg.BatchSize))
	start := time.Now()

	first := true
	for frontier.Len() > 0 && len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			log.Warn("crawl: cancelled", zap.Int("pages", len(pages)), zap.Error(err))
			return pages, eris.Wrap(err, "crawl: cancelled")
		}

		batch := frontier.Next(min(c.cfg.BatchSize, maxPages-len(pages)))
		if len(batch) == 0 {
			break
		}

		results := c.fetchBatch(ctx, session, batch, first)
		first = false

		for _, r := range results {
			if len(pages) >= maxPages {
				break
			}
			pages = append(pages, r.page)
			if c.onPage != nil {
				c.onPage(r.page, len(pages))
			}
			for _, link := range r.page.Links {
				frontier.Push(link, r.entry.Depth+1)
			}
		}
		frontier.Resort()
	}

	log.Info("crawl: complete",
		zap.Int("pages", len(pages)),
		zap.Int("queued", frontier.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return pages, nil
}

// fetchBatch renders a batch concurrently and returns the successes in
// completion order.
func (c *Crawler) fetchBatch(ctx context.Context, session render.Session, batch []Entry, firstBatch bool) []fetched {
	var (
		mu      sync.Mutex
		results = make([]fetched, 0, len(batch))
	)

	// Fresh group per batch; page errors never cancel siblings.
	var g errgroup.Group
	g.SetLimit(c.cfg.BatchSize)

	for i, entry := range batch {
		i, entry := i, entry
		opts := render.Options{Block: render.HeavyResources}
		if firstBatch && i == 0 && c.cfg.ScreenshotFirst {
			opts = render.Options{Screenshot: true, SettleDelay: c.cfg.SettleDelay()}
		}

		g.Go(func() error {
			page, err := c.fetchPage(ctx, session, entry.URL, opts)
			if err != nil {
				zap.L().Warn("crawl: page failed", zap.String("url", entry.URL), zap.Error(err))
				return nil
			}
			mu.Lock()
			results = append(results, fetched{entry: entry, page: page})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Crawler) fetchPage(ctx context.Context, session render.Session, pageURL string, opts render.Options) (page model.CrawledPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("crawl: panic rendering %s: %v", pageURL, fmt.Sprint(r))
		}
	}()

	doc, err := session.Render(ctx, pageURL, opts)
	if err != nil {
		return model.CrawledPage{}, eris.Wrap(err, "crawl: render")
	}
	if doc == nil {
		return model.CrawledPage{}, eris.New("crawl: renderer returned no document")
	}
	page = extract.Extract(*doc)
	if !opts.Screenshot {
		page.Screenshot = nil
	}
	return page, nil
}
