package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/store"
	"github.com/sells-group/site-audit/internal/store/mocks"
)

var _ store.Store = (*mocks.MockStore)(nil)

// --- Crawler Mock ---

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) CrawlWebsite(ctx context.Context, baseURL string, maxPages int) ([]model.CrawledPage, error) {
	args := m.Called(ctx, baseURL, maxPages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CrawledPage), args.Error(1)
}

// --- Prober Mock ---

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, rawURL string) (*model.ProbeResult, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProbeResult), args.Error(1)
}

// --- Auditor Mock ---

type mockAuditor struct {
	mock.Mock
}

func (m *mockAuditor) Audit(ctx context.Context, pages []model.CrawledPage, probe *model.ProbeResult) (model.ScanSummary, error) {
	args := m.Called(ctx, pages, probe)
	return args.Get(0).(model.ScanSummary), args.Error(1)
}

// --- Keyword Finder Mock ---

type mockKeywords struct {
	mock.Mock
}

func (m *mockKeywords) DiscoverKeywords(ctx context.Context, pages []model.CrawledPage) ([]string, error) {
	args := m.Called(ctx, pages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
