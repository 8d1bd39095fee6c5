package render

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/scrape"
)

// maxBodyBytes caps how much of a page the HTTP renderer reads.
const maxBodyBytes = 4 << 20

// HTTP renders pages with a plain GET. It runs no scripts and never fetches
// sub-resources, so resource blocking always holds; it cannot take screenshots.
type HTTP struct {
	client    *http.Client
	userAgent string
}

// HTTPOption configures the HTTP renderer.
type HTTPOption func(*HTTP)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = hc }
}

// NewHTTP creates an HTTP renderer.
func NewHTTP(cfg config.CrawlConfig, opts ...HTTPOption) *HTTP {
	timeout := cfg.NavTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	h := &HTTP{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		},
		userAgent: ua,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Open returns a session sharing the renderer's connection pool.
func (h *HTTP) Open(_ context.Context) (Session, error) {
	return &httpSession{h: h}, nil
}

type httpSession struct {
	h      *HTTP
	closed atomic.Bool
}

func (s *httpSession) Render(ctx context.Context, url string, _ Options) (*model.RenderedDocument, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "render: create request")
	}
	req.Header.Set("User-Agent", s.h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := s.h.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "render: fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "render: read %s", url)
	}
	elapsed := time.Since(start)

	if blocked, kind := scrape.DetectBlock(resp.StatusCode, resp.Header, body); blocked {
		return nil, eris.Errorf("render: %s blocked (%s)", url, kind)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); mt != "text/html" && mt != "application/xhtml+xml" {
			return nil, eris.Errorf("render: %s is %s, not html", url, mt)
		}
	}
	if resp.StatusCode >= 400 {
		zap.L().Debug("render: error status", zap.String("url", url), zap.Int("status", resp.StatusCode))
	}

	return &model.RenderedDocument{
		URL:        url,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		LoadTime:   elapsed,
	}, nil
}

func (s *httpSession) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.h.client.CloseIdleConnections()
	}
	return nil
}
