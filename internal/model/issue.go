package model

// Category groups issues for presentation.
type Category string

const (
	CategoryTechnicalSEO           Category = "Technical SEO"
	CategoryContentQuality         Category = "Content Quality"
	CategoryPageSpeed              Category = "Page Speed"
	CategoryLocalSEO               Category = "Local SEO"
	CategoryTrustAndAuthority      Category = "E-E-A-T"
	CategoryConversionOptimization Category = "Conversion Optimization"
)

// AllCategories returns every issue category.
func AllCategories() []Category {
	return []Category{
		CategoryTechnicalSEO,
		CategoryContentQuality,
		CategoryPageSpeed,
		CategoryLocalSEO,
		CategoryTrustAndAuthority,
		CategoryConversionOptimization,
	}
}

// Severity ranks an issue's weight in the health score.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Penalty returns the points a distinct issue of this severity costs.
func (s Severity) Penalty() int {
	switch s {
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2
	}
	return 0
}

// Explanation is the plain-language breakdown shown next to an issue.
type Explanation struct {
	Problem      string `json:"problem"`
	WhatItMeans  string `json:"what_it_means"`
	WhyItMatters string `json:"why_it_matters"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// IssueContext carries material an auto-fix can start from.
type IssueContext struct {
	Content string `json:"content,omitempty"`
}

// Issue is one detected site-health problem.
type Issue struct {
	Category     Category      `json:"category"`
	Severity     Severity      `json:"severity"`
	Issue        string        `json:"issue"`
	Impact       string        `json:"impact"`
	FixAvailable bool          `json:"fix_available"`
	FixAction    string        `json:"fix_action,omitempty"`
	Context      *IssueContext `json:"context,omitempty"`
	Explanation  Explanation   `json:"explanation"`
}

// Key is the deduplication identity of an issue.
func (i Issue) Key() string {
	return string(i.Category) + ":" + i.Issue
}

// ScanSummary is the deduplicated, scored output of one audit.
type ScanSummary struct {
	Score        int     `json:"score"`
	Issues       []Issue `json:"issues"`
	PagesScanned int     `json:"pages_scanned"`
}

// CountBySeverity tallies the summary's issues.
func (s ScanSummary) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, iss := range s.Issues {
		counts[iss.Severity]++
	}
	return counts
}
