// Package audit is the rule engine: checkers inspect crawled pages and emit
// issues, which are deduplicated and scored into a ScanSummary.
package audit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-audit/internal/model"
)

// maxCheckers bounds concurrent checker calls, most of which wait on an
// external capability.
const maxCheckers = 4

// Auditor runs every checker over a crawl.
type Auditor struct {
	policy  Policy
	insight TextInsight
	metrics PerformanceMetrics
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(a *Auditor) { a.policy = p }
}

// WithTextInsight enables verdict-based content checks.
func WithTextInsight(ti TextInsight) Option {
	return func(a *Auditor) { a.insight = ti }
}

// WithPerformanceMetrics enables page speed checks.
func WithPerformanceMetrics(pm PerformanceMetrics) Option {
	return func(a *Auditor) { a.metrics = pm }
}

// New creates an Auditor. Without capabilities only the local checks run.
func New(opts ...Option) *Auditor {
	a := &Auditor{policy: DefaultPolicy()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Policy returns the thresholds in effect.
func (a *Auditor) Policy() Policy { return a.policy }

// RunFullAudit checks pages and returns the deduplicated, scored summary.
func (a *Auditor) RunFullAudit(ctx context.Context, pages []model.CrawledPage) (model.ScanSummary, error) {
	return a.Audit(ctx, pages, nil)
}

// Audit is RunFullAudit plus crawlability issues from probe. Checkers run
// concurrently but issues are collected in a fixed order: per page technical
// then content, then page speed, trust and crawlability. Checker failures
// only remove issues; the error is non-nil only when ctx ends first.
func (a *Auditor) Audit(ctx context.Context, pages []model.CrawledPage, probe *model.ProbeResult) (model.ScanSummary, error) {
	if len(pages) == 0 {
		return model.ScanSummary{Score: MaxScore, Issues: []model.Issue{}}, nil
	}
	start := time.Now()

	// One slot per checker invocation, filled concurrently, read in order.
	slots := make([][]model.Issue, 2*len(pages)+3)
	speedSlot, trustSlot, crawlSlot := 2*len(pages), 2*len(pages)+1, 2*len(pages)+2

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCheckers)

	for i, page := range pages {
		i, page := i, page
		slots[2*i] = CheckTechnical(page, a.policy)
		if i >= a.policy.ContentPageLimit {
			continue
		}
		g.Go(func() error {
			slots[2*i+1] = CheckContent(gctx, page, a.insight, a.policy)
			return nil
		})
	}
	g.Go(func() error {
		slots[speedSlot] = CheckPageSpeed(gctx, pages[0].URL, a.metrics, a.policy)
		return nil
	})
	slots[trustSlot] = CheckTrust(pages)
	slots[crawlSlot] = CheckCrawlability(probe)

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return model.ScanSummary{}, eris.Wrap(err, "audit: cancelled")
	}

	var raw []model.Issue
	for _, s := range slots {
		raw = append(raw, s...)
	}
	summary := Summarize(raw, len(pages))

	zap.L().Info("audit: complete",
		zap.Int("pages", len(pages)),
		zap.Int("raw_issues", len(raw)),
		zap.Int("issues", len(summary.Issues)),
		zap.Int("score", summary.Score),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}
