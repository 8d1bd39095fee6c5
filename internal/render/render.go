// Package render loads pages for the crawler. A Renderer hands out one
// Session per crawl; a Session may render many URLs concurrently and must be
// closed exactly once.
package render

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/model"
)

// ResourceType names a class of sub-resource a page may load.
type ResourceType string

const (
	ResourceImage      ResourceType = "image"
	ResourceFont       ResourceType = "font"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceMedia      ResourceType = "media"
)

// HeavyResources are skipped when a page is loaded for its content only.
var HeavyResources = []ResourceType{ResourceImage, ResourceFont, ResourceStylesheet, ResourceMedia}

// Options controls a single render.
type Options struct {
	// Screenshot asks for a lossy image of the viewport after SettleDelay.
	Screenshot  bool
	SettleDelay time.Duration
	// Block lists resource types the page must not fetch.
	Block []ResourceType
}

// Renderer acquires rendering sessions.
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// Session renders URLs. Render is safe for concurrent use.
type Session interface {
	Render(ctx context.Context, url string, opts Options) (*model.RenderedDocument, error)
	Close() error
}

// ErrSessionClosed is returned by Render after Close.
var ErrSessionClosed = eris.New("render: session closed")

// New returns the renderer named by cfg.Renderer.
func New(cfg config.CrawlConfig) (Renderer, error) {
	switch cfg.Renderer {
	case "", "chrome":
		return NewChrome(cfg), nil
	case "http":
		return NewHTTP(cfg), nil
	}
	return nil, eris.Errorf("render: unknown renderer %q", cfg.Renderer)
}
