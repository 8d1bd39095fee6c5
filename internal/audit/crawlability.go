package audit

import "github.com/sells-group/site-audit/internal/model"

// Issue labels emitted by CheckCrawlability.
const (
	IssueMissingRobots  = "Missing robots.txt"
	IssueMissingSitemap = "Missing XML sitemap"
)

// CheckCrawlability reports missing crawler hints found by a site probe.
// A nil or unreachable probe yields nothing.
func CheckCrawlability(probe *model.ProbeResult) []model.Issue {
	if probe == nil || !probe.Reachable {
		return nil
	}
	var issues []model.Issue
	if !probe.HasRobots {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityLow,
			Issue:        IssueMissingRobots,
			Impact:       "Search engines get no crawl guidance for your site",
			FixAvailable: true,
			FixAction:    "generate_robots_txt",
			Explanation: model.Explanation{
				Problem:      "No robots.txt file was found at the site root",
				WhatItMeans:  "Crawlers cannot tell which areas to skip or where your sitemap lives",
				WhyItMatters: "A robots.txt keeps crawl budget on the pages that matter",
				SuggestedFix: "Publish a robots.txt that allows your public pages and links your sitemap.",
			},
		})
	}
	if !probe.HasSitemap {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityLow,
			Issue:        IssueMissingSitemap,
			Impact:       "New and deep pages may be discovered slowly",
			FixAvailable: true,
			FixAction:    "generate_sitemap",
			Explanation: model.Explanation{
				Problem:      "No sitemap.xml was found at the site root",
				WhatItMeans:  "Search engines must find every page by following links",
				WhyItMatters: "Sitemaps speed up indexing of pages with few inbound links",
				SuggestedFix: "Generate a sitemap.xml listing your public pages.",
			},
		})
	}
	return issues
}
