package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/audit"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/store/mocks"
)

const site = "https://acme.com/"

func samplePages() []model.CrawledPage {
	return []model.CrawledPage{
		{URL: site, Title: "Acme Roofing", RawTextContent: "we fix roofs fast", LoadTimeMS: 800, Screenshot: []byte("webp")},
		{URL: site + "about", Title: "About", RawTextContent: "family owned", LoadTimeMS: 400},
	}
}

func queuedScan() *model.Scan {
	return &model.Scan{ID: "scan-1", URL: site, MaxPages: 10, Status: model.ScanStatusQueued}
}

func phaseByName(phases []model.PhaseResult, name string) *model.PhaseResult {
	for i := range phases {
		if phases[i].Name == name {
			return &phases[i]
		}
	}
	return nil
}

func TestPipeline_Run_FullFlow(t *testing.T) {
	st := mocks.NewMockStore(t)
	cr := &mockCrawler{}
	pr := &mockProber{}
	au := &mockAuditor{}
	kw := &mockKeywords{}
	ctx := context.Background()

	pages := samplePages()
	probe := &model.ProbeResult{Reachable: true, StatusCode: 200, HasRobots: true}
	summary := model.ScanSummary{Score: 85, Issues: []model.Issue{{Issue: "Missing XML sitemap", Severity: model.SeverityLow}}, PagesScanned: 2}

	st.On("CreateScan", ctx, site, 10).Return(queuedScan(), nil)
	st.On("UpdateScanStatus", ctx, "scan-1", model.ScanStatusCrawling).Return(nil).Once()
	st.On("UpdateScanStatus", ctx, "scan-1", model.ScanStatusAnalyzing).Return(nil).Once()
	st.On("GetCachedCrawl", mock.Anything, site).Return(nil, nil)
	st.On("SetCachedCrawl", mock.Anything, site, pages, 24*time.Hour).Return(nil)
	st.On("CompleteScan", ctx, "scan-1", mock.MatchedBy(func(r *model.ScanResult) bool {
		return r.Summary.Score == 85 && string(r.Screenshot) == "webp" && len(r.Keywords) == 2
	})).Return(nil)

	cr.On("CrawlWebsite", mock.Anything, site, 10).Return(pages, nil)
	pr.On("Probe", mock.Anything, site).Return(probe, nil)
	au.On("Audit", ctx, pages, probe).Return(summary, nil)
	kw.On("DiscoverKeywords", ctx, pages).Return([]string{"roof repair", "roofer near me"}, nil)

	p := New(st, cr, au, WithProber(pr), WithKeywordFinder(kw), WithCacheTTL(24*time.Hour))
	scan, err := p.Run(ctx, "ACME.com", 10)
	require.NoError(t, err)

	assert.Equal(t, model.ScanStatusComplete, scan.Status)
	require.NotNil(t, scan.Result)
	assert.Equal(t, 85, scan.Result.Summary.Score)
	assert.Equal(t, probe, scan.Result.Probe)
	assert.False(t, scan.Result.FromCache)
	require.Len(t, scan.Result.Pages, 2)
	assert.Equal(t, 4, scan.Result.Pages[0].WordCount)
	assert.Len(t, scan.Result.Phases, 4)
	for _, ph := range scan.Result.Phases {
		assert.Equal(t, model.PhaseStatusComplete, ph.Status, ph.Name)
	}

	cr.AssertExpectations(t)
	pr.AssertExpectations(t)
	au.AssertExpectations(t)
	kw.AssertExpectations(t)
}

func TestPipeline_Run_UsesCache(t *testing.T) {
	st := mocks.NewMockStore(t)
	cr := &mockCrawler{}
	au := &mockAuditor{}
	ctx := context.Background()

	cached := samplePages()
	st.On("CreateScan", ctx, site, 1).Return(&model.Scan{ID: "scan-1", URL: site, MaxPages: 1}, nil)
	st.On("UpdateScanStatus", ctx, "scan-1", mock.Anything).Return(nil)
	st.On("GetCachedCrawl", mock.Anything, site).Return(&model.CrawlCache{SiteURL: site, Pages: cached}, nil)
	st.On("CompleteScan", ctx, "scan-1", mock.Anything).Return(nil)
	au.On("Audit", ctx, cached[:1], (*model.ProbeResult)(nil)).Return(model.ScanSummary{Score: 100, Issues: []model.Issue{}, PagesScanned: 1}, nil)

	p := New(st, cr, au, WithCacheTTL(time.Hour))
	scan, err := p.Run(ctx, site, 1)
	require.NoError(t, err)
	assert.True(t, scan.Result.FromCache)
	assert.Len(t, scan.Result.Pages, 1, "cached crawl is trimmed to the budget")

	cr.AssertNotCalled(t, "CrawlWebsite", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, model.PhaseStatusSkipped, phaseByName(scan.Result.Phases, PhaseProbe).Status)
	assert.Equal(t, model.PhaseStatusSkipped, phaseByName(scan.Result.Phases, PhaseKeywords).Status)
}

func TestPipeline_Run_NoPages(t *testing.T) {
	st := mocks.NewMockStore(t)
	cr := &mockCrawler{}
	au := &mockAuditor{}
	ctx := context.Background()

	st.On("CreateScan", ctx, site, 5).Return(&model.Scan{ID: "scan-1", URL: site, MaxPages: 5}, nil)
	st.On("UpdateScanStatus", ctx, "scan-1", model.ScanStatusCrawling).Return(nil)
	st.On("FailScan", mock.Anything, "scan-1", "no pages could be crawled").Return(nil)
	cr.On("CrawlWebsite", mock.Anything, site, 5).Return([]model.CrawledPage{}, nil)

	p := New(st, cr, au)
	scan, err := p.Run(ctx, site, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPages))
	assert.Equal(t, model.ScanStatusFailed, scan.Status)
	assert.Equal(t, "no pages could be crawled", scan.Error)
	au.AssertNotCalled(t, "Audit", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Run_CrawlError(t *testing.T) {
	st := mocks.NewMockStore(t)
	cr := &mockCrawler{}
	ctx := context.Background()

	st.On("CreateScan", ctx, site, 5).Return(&model.Scan{ID: "scan-1", URL: site, MaxPages: 5}, nil)
	st.On("UpdateScanStatus", ctx, "scan-1", model.ScanStatusCrawling).Return(nil)
	st.On("FailScan", mock.Anything, "scan-1", mock.MatchedBy(func(reason string) bool {
		return strings.Contains(reason, "browser failed to launch")
	})).Return(nil)
	cr.On("CrawlWebsite", mock.Anything, site, 5).Return(nil, errors.New("browser failed to launch"))

	p := New(st, cr, &mockAuditor{})
	scan, err := p.Run(ctx, site, 5)
	require.Error(t, err)
	assert.Equal(t, model.ScanStatusFailed, scan.Status)
	crawlPhase := phaseByName(scan.Result.Phases, PhaseCrawl)
	require.NotNil(t, crawlPhase)
	assert.Equal(t, model.PhaseStatusFailed, crawlPhase.Status)
}

func TestPipeline_Run_AuditError(t *testing.T) {
	st := mocks.NewMockStore(t)
	cr := &mockCrawler{}
	au := &mockAuditor{}
	ctx := context.Background()
	pages := samplePages()

	st.On("CreateScan", ctx, site, 5).Return(&model.Scan{ID: "scan-1", URL: site, MaxPages: 5}, nil)
	st.On("UpdateScanStatus", ctx, "scan-1", mock.Anything).Return(nil)
	st.On("FailScan", mock.Anything, "scan-1", mock.Anything).Return(nil)
	cr.On("CrawlWebsite", mock.Anything, site, 5).Return(pages, nil)
	au.On("Audit", ctx, pages, (*model.ProbeResult)(nil)).Return(model.ScanSummary{}, context.Canceled)

	p := New(st, cr, au)
	_, err := p.Run(ctx, site, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPipeline_Run_ProbeAndKeywordFailuresAreSoft(t *testing.T) {
	cr := &mockCrawler{}
	pr := &mockProber{}
	au := &mockAuditor{}
	kw := &mockKeywords{}
	ctx := context.Background()
	pages := samplePages()

	cr.On("CrawlWebsite", mock.Anything, site, 50).Return(pages, nil)
	pr.On("Probe", mock.Anything, site).Return(nil, errors.New("dns failure"))
	au.On("Audit", ctx, pages, (*model.ProbeResult)(nil)).Return(model.ScanSummary{Score: 90, Issues: []model.Issue{}}, nil)
	kw.On("DiscoverKeywords", ctx, pages).Return(nil, errors.New("rate limited"))

	p := New(nil, cr, au, WithProber(pr), WithKeywordFinder(kw))
	scan, err := p.Run(ctx, site, 0)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusComplete, scan.Status)
	assert.Equal(t, 50, scan.MaxPages, "default budget applies")
	assert.Nil(t, scan.Result.Keywords)
	assert.Nil(t, scan.Result.Probe)
	assert.Equal(t, model.PhaseStatusFailed, phaseByName(scan.Result.Phases, PhaseProbe).Status)
	assert.Equal(t, model.PhaseStatusFailed, phaseByName(scan.Result.Phases, PhaseKeywords).Status)
}

func TestPipeline_Start_InvalidURL(t *testing.T) {
	p := New(nil, &mockCrawler{}, &mockAuditor{})
	_, err := p.Start(context.Background(), "   ", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidURL))
}

func TestPipeline_Start_StoreError(t *testing.T) {
	st := mocks.NewMockStore(t)
	st.On("CreateScan", mock.Anything, site, 5).Return(nil, errors.New("disk full"))

	p := New(st, &mockCrawler{}, &mockAuditor{})
	_, err := p.Start(context.Background(), site, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create scan")
}

func TestPipeline_WithRealAuditor(t *testing.T) {
	cr := &mockCrawler{}
	pages := []model.CrawledPage{{
		URL:            "http://acme.com/",
		Title:          "Acme",
		RawTextContent: "short",
		Headings:       model.Headings{H1: []string{}, H2: []string{}},
	}}
	cr.On("CrawlWebsite", mock.Anything, "http://acme.com/", 3).Return(pages, nil)

	p := New(nil, cr, audit.New())
	scan, err := p.Run(context.Background(), "http://acme.com", 3)
	require.NoError(t, err)
	assert.Less(t, scan.Result.Summary.Score, 100)
	assert.Equal(t, 1, scan.Result.Summary.PagesScanned)
}

func TestDigestAndScreenshot(t *testing.T) {
	pages := []model.CrawledPage{
		{URL: "a", Title: "A", RawTextContent: "one two  three", LoadTimeMS: 10},
		{URL: "b", Screenshot: []byte("x")},
	}
	d := Digest(pages)
	require.Len(t, d, 2)
	assert.Equal(t, 3, d[0].WordCount)
	assert.Equal(t, int64(10), d[0].LoadTimeMS)
	assert.Equal(t, []byte("x"), HomepageScreenshot(pages))
	assert.Nil(t, HomepageScreenshot(pages[:1]))
	assert.NotNil(t, Digest(nil))
}
