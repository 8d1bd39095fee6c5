package audit

import (
	"fmt"
	"unicode/utf8"

	"github.com/sells-group/site-audit/internal/model"
)

// Issue labels emitted by CheckTechnical that do not vary.
const (
	IssueMissingTitle       = "Missing page title"
	IssueMissingDescription = "Missing meta description"
	IssueMissingH1          = "Missing H1 heading"
	IssueMultipleH1         = "Multiple H1 headings found"
	IssueMissingSchema      = "Missing Structured Data (Schema)"
)

// CheckTechnical inspects one page's on-page SEO basics.
func CheckTechnical(page model.CrawledPage, p Policy) []model.Issue {
	var issues []model.Issue

	if page.Title == "" {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityHigh,
			Issue:        IssueMissingTitle,
			Impact:       "Google does not know what your page is about",
			FixAvailable: true,
			FixAction:    "generate_title",
			Explanation: model.Explanation{
				Problem:      "Your page is missing a title tag",
				WhatItMeans:  "This is the main heading Google shows in search results",
				WhyItMatters: "Titles are the single most important on-page SEO factor",
				SuggestedFix: "Add a descriptive title between 50-60 characters.",
			},
		})
	} else if n := utf8.RuneCountInString(page.Title); n < p.TitleMin || n > p.TitleMax {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityMedium,
			Issue:        fmt.Sprintf("Title length is suboptimal (%d characters)", n),
			Impact:       "Title might be cut off or look incomplete in search results",
			FixAvailable: true,
			Explanation: model.Explanation{
				Problem:      "Your title length is not ideal",
				WhatItMeans:  "Ideally, titles should be between 50-60 characters",
				WhyItMatters: "Optimized titles improve click-through rates from Google",
			},
		})
	}

	if page.MetaDescription == "" {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityHigh,
			Issue:        IssueMissingDescription,
			Impact:       "Lower click-through rate from search results",
			FixAvailable: true,
			FixAction:    "generate_description",
			Explanation: model.Explanation{
				Problem:      "You're missing a meta description",
				WhatItMeans:  "Google doesn't know what your page is about",
				WhyItMatters: "Pages with meta descriptions get 30% more clicks",
				SuggestedFix: "Add a summary of the page (150-160 characters).",
			},
		})
	}

	switch h1 := len(page.Headings.H1); {
	case h1 == 0:
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityHigh,
			Issue:        IssueMissingH1,
			Impact:       "Poor content structure and SEO ranking",
			FixAvailable: true,
			Explanation: model.Explanation{
				Problem:      "Your page lacks an H1 tag",
				WhatItMeans:  "The H1 is the main header of your content",
				WhyItMatters: "Google uses H1 tags to understand the primary topic of the page",
			},
		})
	case h1 > 1:
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityLow,
			Issue:        IssueMultipleH1,
			Impact:       "Confusing for search engines and accessibility",
			FixAvailable: true,
			Explanation: model.Explanation{
				Problem:      "You have more than one H1 tag",
				WhatItMeans:  "A page should ideally have only one main header",
				WhyItMatters: "Single H1 tags provide clearer structure for search engines",
			},
		})
	}

	if missing := countMissingAlt(page.Images); missing > 0 {
		issues = append(issues, model.Issue{
			Category:     model.CategoryTechnicalSEO,
			Severity:     model.SeverityMedium,
			Issue:        fmt.Sprintf("%d images missing alt text", missing),
			Impact:       "Lost SEO opportunity and poor accessibility",
			FixAvailable: true,
			FixAction:    "generate_alt_tags",
			Explanation: model.Explanation{
				Problem:      "Some images are missing descriptions (Alt text)",
				WhatItMeans:  `Search engines cannot "see" images without descriptions`,
				WhyItMatters: "Alt text helps you rank in Image Search and is required for accessibility",
			},
		})
	}

	if len(page.StructuredData) == 0 {
		issues = append(issues, model.Issue{
			Category:     model.CategoryLocalSEO,
			Severity:     model.SeverityHigh,
			Issue:        IssueMissingSchema,
			Impact:       "Google treats you as a generic page, not a verified Entity.",
			FixAvailable: true,
			FixAction:    "generate_local_schema",
			Explanation: model.Explanation{
				Problem:      "No Schema.org markup found (JSON-LD)",
				WhatItMeans:  "Search engines struggle to understand your business details",
				WhyItMatters: "Schema is required for Rich Snippets and Local Pack rankings",
			},
		})
	}

	return issues
}

func countMissingAlt(images []model.Image) int {
	n := 0
	for _, img := range images {
		if img.Alt == "" {
			n++
		}
	}
	return n
}
