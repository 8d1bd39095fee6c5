package model

import "time"

// ScanStatus represents the current state of a scan.
type ScanStatus string

const (
	ScanStatusQueued    ScanStatus = "queued"
	ScanStatusCrawling  ScanStatus = "crawling"
	ScanStatusAnalyzing ScanStatus = "analyzing"
	ScanStatusComplete  ScanStatus = "complete"
	ScanStatusFailed    ScanStatus = "failed"
)

// Terminal reports whether no further transitions follow.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusComplete || s == ScanStatusFailed
}

// Scan is one persisted crawl+audit of a website.
type Scan struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	MaxPages  int         `json:"max_pages"`
	Status    ScanStatus  `json:"status"`
	Result    *ScanResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ScanResult is everything a finished scan produced, minus the screenshot,
// which is stored and served separately.
type ScanResult struct {
	Summary   ScanSummary   `json:"summary"`
	Keywords  []string      `json:"keywords,omitempty"`
	Probe     *ProbeResult  `json:"probe,omitempty"`
	Pages     []PageDigest  `json:"pages"`
	Phases    []PhaseResult `json:"phases"`
	FromCache bool          `json:"from_cache"`

	Screenshot []byte `json:"-"`
}

// PageDigest is the per-page listing kept with a scan.
type PageDigest struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	WordCount  int    `json:"word_count"`
	LoadTimeMS int64  `json:"load_time_ms"`
}

// ScanFilter narrows ListScans.
type ScanFilter struct {
	Status ScanStatus
	Limit  int
	Offset int
}

// PhaseStatus represents the outcome of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CrawlCache stores a cached crawl keyed by normalized site URL.
type CrawlCache struct {
	ID        string        `json:"id"`
	SiteURL   string        `json:"site_url"`
	Pages     []CrawledPage `json:"pages"`
	CrawledAt time.Time     `json:"crawled_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// ProbeResult holds what a pre-crawl probe learned about a site.
type ProbeResult struct {
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code"`
	HasRobots  bool   `json:"has_robots"`
	HasSitemap bool   `json:"has_sitemap"`
	FinalURL   string `json:"final_url"`
}
