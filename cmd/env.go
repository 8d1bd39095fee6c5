package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/audit"
	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/crawler"
	"github.com/sells-group/site-audit/internal/insight"
	"github.com/sells-group/site-audit/internal/pipeline"
	"github.com/sells-group/site-audit/internal/render"
	"github.com/sells-group/site-audit/internal/resilience"
	"github.com/sells-group/site-audit/internal/store"
	anthropicpkg "github.com/sells-group/site-audit/pkg/anthropic"
	"github.com/sells-group/site-audit/pkg/pagespeed"
)

// auditEnv holds the store and pipeline used by the audit and serve commands.
type auditEnv struct {
	Store    store.Store // nil when persistence is disabled
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *auditEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initAuditEnv wires the renderer, crawler, checkers and optional external
// capabilities into a pipeline. mode is passed to Config.Validate.
func initAuditEnv(ctx context.Context, mode string, persist bool, crawlOpts ...crawler.Option) (*auditEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &auditEnv{}
	if persist {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	renderer, err := render.New(cfg.Crawl)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Pipeline = buildPipeline(cfg, env.Store, renderer, crawlOpts...)
	return env, nil
}

// buildPipeline assembles the scan pipeline from configuration.
func buildPipeline(c *config.Config, st store.Store, renderer render.Renderer, crawlOpts ...crawler.Option) *pipeline.Pipeline {
	cr := crawler.New(renderer, c.Crawl, crawlOpts...)
	prober := crawler.NewProber(&http.Client{Timeout: 15 * time.Second}, c.Crawl.UserAgent)

	policy := audit.PolicyFromConfig(c.Audit)
	auditOpts := []audit.Option{audit.WithPolicy(policy)}
	pipeOpts := []pipeline.Option{
		pipeline.WithProber(prober),
		pipeline.WithDefaultMaxPages(c.Crawl.MaxPages),
		pipeline.WithCacheTTL(time.Duration(c.Crawl.CacheTTLHours) * time.Hour),
	}

	if c.Anthropic.Key != "" {
		guard := resilience.NewGuard("anthropic", c.Resilience, policy.CheckerTimeout)
		analyzer := insight.New(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic, guard)
		auditOpts = append(auditOpts, audit.WithTextInsight(analyzer))
		if c.Audit.DiscoverKeywords {
			pipeOpts = append(pipeOpts, pipeline.WithKeywordFinder(analyzer))
		}
		zap.L().Info("text insight enabled", zap.String("model", c.Anthropic.Model))
	} else {
		zap.L().Debug("SITEAUDIT_ANTHROPIC_KEY not set, content verdicts and keywords disabled")
	}

	if c.PageSpeed.Key != "" {
		client := pagespeed.NewClient(c.PageSpeed.Key,
			pagespeed.WithBaseURL(c.PageSpeed.BaseURL),
			pagespeed.WithStrategy(c.PageSpeed.Strategy),
			pagespeed.WithRateLimit(c.PageSpeed.RatePerSec),
		)
		guard := resilience.NewGuard("pagespeed", c.Resilience, policy.CheckerTimeout)
		auditOpts = append(auditOpts, audit.WithPerformanceMetrics(audit.NewPageSpeedMetrics(client, guard)))
		zap.L().Info("pagespeed checks enabled", zap.String("strategy", c.PageSpeed.Strategy))
	} else {
		zap.L().Debug("SITEAUDIT_PAGESPEED_KEY not set, page speed checks disabled")
	}

	return pipeline.New(st, cr, audit.New(auditOpts...), pipeOpts...)
}
