package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/scrape"
)

// ScreenshotQuality is the WebP quality used for page captures.
const ScreenshotQuality = 60

const imagesJS = `Array.from(document.images).map(function (i) {
	return {src: i.currentSrc || i.src || "", alt: i.getAttribute("alt") || "", width: i.naturalWidth || i.width || 0, height: i.naturalHeight || i.height || 0};
})`

const innerTextJS = `document.body ? document.body.innerText : ""`

// Chrome renders pages in headless Chrome: one browser per session, one tab per page.
type Chrome struct {
	cfg config.CrawlConfig
}

// NewChrome creates a Chrome renderer.
func NewChrome(cfg config.CrawlConfig) *Chrome {
	return &Chrome{cfg: cfg}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(c.cfg.ViewportWidth, c.cfg.ViewportHeight),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	if !c.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// Open launches the browser. Failure here is fatal to the crawl.
func (c *Chrome) Open(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(zap.S().Debugf))

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "render: launch chrome")
	}

	zap.L().Debug("render: chrome started")
	return &chromeSession{
		cfg:        c.cfg,
		browserCtx: browserCtx,
		cancel: func() {
			_ = chromedp.Cancel(browserCtx)
			browserCancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	cfg        config.CrawlConfig
	browserCtx context.Context
	cancel     func()
	once       sync.Once
	closed     atomic.Bool
}

func (s *chromeSession) Render(ctx context.Context, url string, opts Options) (*model.RenderedDocument, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()
	if s.cfg.NavTimeoutSecs > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, s.cfg.NavTimeout())
		defer cancel()
	}
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight)),
	}
	if patterns := requestPatterns(opts.Block); len(patterns) > 0 {
		chromedp.ListenTarget(tabCtx, func(ev any) {
			paused, ok := ev.(*fetch.EventRequestPaused)
			if !ok {
				return
			}
			go func() {
				c := chromedp.FromContext(tabCtx)
				if c == nil || c.Target == nil {
					return
				}
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).
					Do(cdp.WithExecutor(tabCtx, c.Target))
			}()
		})
		setup = append(setup, fetch.Enable().WithPatterns(patterns))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		return nil, eris.Wrapf(err, "render: open tab for %s", url)
	}

	start := time.Now()
	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, eris.Wrapf(err, "render: navigate %s", url)
	}
	doc := &model.RenderedDocument{URL: url, LoadTime: time.Since(start)}
	if resp != nil {
		doc.StatusCode = int(resp.Status)
		if doc.StatusCode >= 400 {
			zap.L().Debug("render: error status", zap.String("url", url), zap.Int("status", doc.StatusCode))
		}
	}

	if opts.Screenshot {
		doc.Screenshot = s.capture(tabCtx, url, opts.SettleDelay)
	}

	err = chromedp.Run(tabCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &doc.HTML, chromedp.ByQuery),
		chromedp.Evaluate(innerTextJS, &doc.Text),
		chromedp.Evaluate(imagesJS, &doc.Images),
		chromedp.Location(&doc.FinalURL),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "render: read dom %s", url)
	}

	if blocked, kind := scrape.DetectBlock(doc.StatusCode, nil, []byte(doc.HTML)); blocked && kind != scrape.BlockJSShell {
		return nil, eris.Errorf("render: %s blocked (%s)", url, kind)
	}
	return doc, nil
}

// capture waits for the page to settle and grabs the viewport. A failed
// capture leaves the page without a screenshot.
func (s *chromeSession) capture(ctx context.Context, url string, settle time.Duration) []byte {
	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.Sleep(settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatWebp).
				WithQuality(ScreenshotQuality).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		zap.L().Warn("render: screenshot failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	return buf
}

func (s *chromeSession) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		zap.L().Debug("render: chrome stopped")
	})
	return nil
}

func requestPatterns(block []ResourceType) []*fetch.RequestPattern {
	patterns := make([]*fetch.RequestPattern, 0, len(block))
	for _, rt := range block {
		t, ok := cdpResourceType(rt)
		if !ok {
			continue
		}
		patterns = append(patterns, &fetch.RequestPattern{
			URLPattern:   "*",
			ResourceType: t,
			RequestStage: fetch.RequestStageRequest,
		})
	}
	return patterns
}

func cdpResourceType(rt ResourceType) (network.ResourceType, bool) {
	switch rt {
	case ResourceImage:
		return network.ResourceTypeImage, true
	case ResourceFont:
		return network.ResourceTypeFont, true
	case ResourceStylesheet:
		return network.ResourceTypeStylesheet, true
	case ResourceMedia:
		return network.ResourceTypeMedia, true
	}
	return "", false
}
