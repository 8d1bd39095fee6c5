// Package pipeline runs one scan end to end: probe and crawl, audit,
// keyword discovery and persistence of the result.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-audit/internal/crawler"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/store"
)

var (
	// ErrNoPages fails a scan whose crawl produced nothing to audit.
	ErrNoPages = eris.New("no pages could be crawled")
	// ErrInvalidURL is returned for a URL that cannot be normalized.
	ErrInvalidURL = eris.New("invalid url")
)

// Phase names, in execution order.
const (
	PhaseProbe    = "1a_probe"
	PhaseCrawl    = "1b_crawl"
	PhaseAudit    = "2_audit"
	PhaseKeywords = "3_keywords"
)

// Crawler fetches up to maxPages pages of a site.
type Crawler interface {
	CrawlWebsite(ctx context.Context, baseURL string, maxPages int) ([]model.CrawledPage, error)
}

// Prober inspects a site before the crawl.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (*model.ProbeResult, error)
}

// Auditor turns crawled pages into a scored summary.
type Auditor interface {
	Audit(ctx context.Context, pages []model.CrawledPage, probe *model.ProbeResult) (model.ScanSummary, error)
}

// KeywordFinder suggests keywords for a crawled site.
type KeywordFinder interface {
	DiscoverKeywords(ctx context.Context, pages []model.CrawledPage) ([]string, error)
}

// Pipeline orchestrates the phases of a scan.
type Pipeline struct {
	store    store.Store
	crawler  Crawler
	auditor  Auditor
	prober   Prober
	keywords KeywordFinder

	defaultMaxPages int
	cacheTTL        time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProber enables the robots.txt/sitemap probe.
func WithProber(p Prober) Option {
	return func(pl *Pipeline) { pl.prober = p }
}

// WithKeywordFinder enables keyword discovery.
func WithKeywordFinder(k KeywordFinder) Option {
	return func(pl *Pipeline) { pl.keywords = k }
}

// WithCacheTTL enables the crawl cache. Zero disables it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(pl *Pipeline) { pl.cacheTTL = ttl }
}

// WithDefaultMaxPages sets the budget used when a request names none.
func WithDefaultMaxPages(n int) Option {
	return func(pl *Pipeline) { pl.defaultMaxPages = n }
}

// New creates a Pipeline. A nil store runs scans without persistence.
func New(st store.Store, c Crawler, a Auditor, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:           st,
		crawler:         c,
		auditor:         a,
		defaultMaxPages: 50,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run creates a scan for rawURL and executes it.
func (p *Pipeline) Run(ctx context.Context, rawURL string, maxPages int) (*model.Scan, error) {
	scan, err := p.Start(ctx, rawURL, maxPages)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, scan)
}

// Start validates the request and records a queued scan.
func (p *Pipeline) Start(ctx context.Context, rawURL string, maxPages int) (*model.Scan, error) {
	siteURL, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		return nil, eris.Wrap(ErrInvalidURL, err.Error())
	}
	if maxPages <= 0 {
		maxPages = p.defaultMaxPages
	}

	if p.store == nil {
		now := time.Now().UTC()
		return &model.Scan{
			URL:       siteURL,
			MaxPages:  maxPages,
			Status:    model.ScanStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}

	scan, err := p.store.CreateScan(ctx, siteURL, maxPages)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create scan")
	}
	return scan, nil
}

// Execute runs a queued scan to completion. On failure the scan is marked
// failed with the error message and the error is returned.
func (p *Pipeline) Execute(ctx context.Context, scan *model.Scan) (*model.Scan, error) {
	log := zap.L().With(zap.String("scan_id", scan.ID), zap.String("url", scan.URL))
	log.Info("pipeline: starting scan", zap.Int("max_pages", scan.MaxPages))

	result := &model.ScanResult{}

	setStatus := func(status model.ScanStatus) {
		scan.Status = status
		scan.UpdatedAt = time.Now().UTC()
		if p.store == nil {
			return
		}
		if statusErr := p.store.UpdateScanStatus(ctx, scan.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		switch {
		case fnErr != nil:
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Warn("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		case phaseResult.Status == "":
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		phasesMu.Lock()
		result.Phases = append(result.Phases, *phaseResult)
		phasesMu.Unlock()
		return fnErr
	}

	// ===== Phase 1: probe and crawl in parallel =====
	setStatus(model.ScanStatusCrawling)

	var pages []model.CrawledPage
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_ = trackPhase(PhaseProbe, func() (*model.PhaseResult, error) {
			if p.prober == nil {
				return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
			}
			probe, probeErr := p.prober.Probe(gCtx, scan.URL)
			if probeErr != nil {
				return nil, probeErr
			}
			result.Probe = probe
			return &model.PhaseResult{
				Metadata: map[string]any{
					"reachable":   probe.Reachable,
					"has_robots":  probe.HasRobots,
					"has_sitemap": probe.HasSitemap,
				},
			}, nil
		})
		// A failed probe only costs the crawlability checks.
		return nil
	})

	g.Go(func() error {
		return trackPhase(PhaseCrawl, func() (*model.PhaseResult, error) {
			crawled, fromCache, crawlErr := p.crawl(gCtx, scan)
			if crawlErr != nil {
				return nil, crawlErr
			}
			pages = crawled
			result.FromCache = fromCache
			return &model.PhaseResult{
				Metadata: map[string]any{
					"pages_count": len(crawled),
					"from_cache":  fromCache,
				},
			}, nil
		})
	})

	if err := g.Wait(); err != nil {
		return p.fail(ctx, scan, result, eris.Wrap(err, "pipeline: crawl"))
	}
	if len(pages) == 0 {
		return p.fail(ctx, scan, result, ErrNoPages)
	}

	// ===== Phase 2: audit =====
	setStatus(model.ScanStatusAnalyzing)

	err := trackPhase(PhaseAudit, func() (*model.PhaseResult, error) {
		summary, auditErr := p.auditor.Audit(ctx, pages, result.Probe)
		if auditErr != nil {
			return nil, auditErr
		}
		result.Summary = summary
		return &model.PhaseResult{
			Metadata: map[string]any{
				"score":  summary.Score,
				"issues": len(summary.Issues),
			},
		}, nil
	})
	if err != nil {
		return p.fail(ctx, scan, result, eris.Wrap(err, "pipeline: audit"))
	}

	// ===== Phase 3: keywords =====
	_ = trackPhase(PhaseKeywords, func() (*model.PhaseResult, error) {
		if p.keywords == nil {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		}
		kws, kwErr := p.keywords.DiscoverKeywords(ctx, pages)
		if kwErr != nil {
			return nil, kwErr
		}
		result.Keywords = kws
		return &model.PhaseResult{Metadata: map[string]any{"keywords": len(kws)}}, nil
	})

	result.Pages = Digest(pages)
	result.Screenshot = HomepageScreenshot(pages)

	if p.store != nil {
		if saveErr := p.store.CompleteScan(ctx, scan.ID, result); saveErr != nil {
			return nil, eris.Wrap(saveErr, "pipeline: save scan")
		}
	}
	scan.Status = model.ScanStatusComplete
	scan.UpdatedAt = time.Now().UTC()
	scan.Result = result

	log.Info("pipeline: scan complete",
		zap.Int("score", result.Summary.Score),
		zap.Int("issues", len(result.Summary.Issues)),
		zap.Int("pages", len(pages)),
	)
	return scan, nil
}

// crawl serves a cached crawl when one is fresh, otherwise crawls and caches.
func (p *Pipeline) crawl(ctx context.Context, scan *model.Scan) ([]model.CrawledPage, bool, error) {
	useCache := p.store != nil && p.cacheTTL > 0

	if useCache {
		cached, err := p.store.GetCachedCrawl(ctx, scan.URL)
		if err != nil {
			zap.L().Warn("pipeline: cache lookup failed", zap.String("url", scan.URL), zap.Error(err))
		}
		if cached != nil && len(cached.Pages) > 0 {
			pages := cached.Pages
			if len(pages) > scan.MaxPages {
				pages = pages[:scan.MaxPages]
			}
			zap.L().Info("pipeline: using cached crawl",
				zap.String("url", scan.URL),
				zap.Int("pages", len(pages)),
			)
			return pages, true, nil
		}
	}

	pages, err := p.crawler.CrawlWebsite(ctx, scan.URL, scan.MaxPages)
	if err != nil {
		return nil, false, err
	}

	if useCache && len(pages) > 0 {
		if setErr := p.store.SetCachedCrawl(ctx, scan.URL, pages, p.cacheTTL); setErr != nil {
			zap.L().Warn("pipeline: cache write failed", zap.String("url", scan.URL), zap.Error(setErr))
		}
	}
	return pages, false, nil
}

// fail records the failure on the scan and returns err.
func (p *Pipeline) fail(ctx context.Context, scan *model.Scan, result *model.ScanResult, err error) (*model.Scan, error) {
	scan.Status = model.ScanStatusFailed
	scan.Error = err.Error()
	scan.UpdatedAt = time.Now().UTC()
	scan.Result = result

	zap.L().Error("pipeline: scan failed", zap.String("scan_id", scan.ID), zap.Error(err))

	if p.store != nil {
		// The caller's context may be the reason for the failure.
		if failErr := p.store.FailScan(context.WithoutCancel(ctx), scan.ID, err.Error()); failErr != nil {
			zap.L().Warn("pipeline: failed to record failure", zap.String("scan_id", scan.ID), zap.Error(failErr))
		}
	}
	return scan, err
}

// Digest lists crawled pages for storage with a scan.
func Digest(pages []model.CrawledPage) []model.PageDigest {
	out := make([]model.PageDigest, 0, len(pages))
	for _, pg := range pages {
		out = append(out, model.PageDigest{
			URL:        pg.URL,
			Title:      pg.Title,
			WordCount:  len(strings.Fields(pg.RawTextContent)),
			LoadTimeMS: pg.LoadTimeMS,
		})
	}
	return out
}

// HomepageScreenshot returns the first screenshot in the crawl, which the
// crawler only captures for the seed page.
func HomepageScreenshot(pages []model.CrawledPage) []byte {
	for _, pg := range pages {
		if len(pg.Screenshot) > 0 {
			return pg.Screenshot
		}
	}
	return nil
}
