package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-audit/internal/model"
)

// ErrNotFound is returned when a scan does not exist.
var ErrNotFound = eris.New("store: not found")

// DefaultListLimit caps ListScans when the filter sets no limit.
const DefaultListLimit = 100

// Store defines the persistence interface for scans.
type Store interface {
	// Scans
	CreateScan(ctx context.Context, url string, maxPages int) (*model.Scan, error)
	UpdateScanStatus(ctx context.Context, scanID string, status model.ScanStatus) error
	CompleteScan(ctx context.Context, scanID string, result *model.ScanResult) error
	FailScan(ctx context.Context, scanID string, reason string) error
	GetScan(ctx context.Context, scanID string) (*model.Scan, error)
	ListScans(ctx context.Context, filter model.ScanFilter) ([]model.Scan, error)
	GetScreenshot(ctx context.Context, scanID string) ([]byte, error)

	// Crawl cache
	GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error)
	SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error
	DeleteExpiredCrawls(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the backend named by driver.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	}
	return nil, eris.Errorf("store: unsupported driver %q", driver)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
