package audit

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/model"
)

// Readability values a Verdict may carry.
const (
	ReadabilityGood = "good"
	ReadabilityPoor = "poor"
)

// thinContextChars bounds the content preview attached to a thin-content issue.
const thinContextChars = 1500

// Verdict is the text-insight judgement of one page's copy.
type Verdict struct {
	Readability     string
	MissingKeywords []string
	HasCallToAction bool
	Summary         string
}

// TextInsight judges page copy. Implementations return an error when the
// judgement is unavailable or malformed.
type TextInsight interface {
	Judge(ctx context.Context, pageURL, title, content string) (Verdict, error)
}

// CheckContent reports thin content and, when insight is non-nil, translates
// its verdict on the page into issues. An insight failure drops only the
// verdict-derived issues.
func CheckContent(ctx context.Context, page model.CrawledPage, insight TextInsight, p Policy) []model.Issue {
	issues := ThinContentIssues(page, p)
	if insight == nil {
		return issues
	}

	if p.CheckerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.CheckerTimeout)
		defer cancel()
	}

	verdict, err := insight.Judge(ctx, page.URL, page.Title, truncateRunes(page.RawTextContent, p.ContentMaxChars))
	if err != nil {
		zap.L().Warn("audit: text insight unavailable",
			zap.String("url", page.URL),
			zap.Error(err),
		)
		return issues
	}
	return append(issues, VerdictIssues(verdict)...)
}

// ThinContentIssues reports a page whose word count is under the policy minimum.
func ThinContentIssues(page model.CrawledPage, p Policy) []model.Issue {
	words := len(strings.Fields(page.RawTextContent))
	if words >= p.ThinContentWords {
		return nil
	}
	return []model.Issue{{
		Category:     model.CategoryContentQuality,
		Severity:     model.SeverityMedium,
		Issue:        fmt.Sprintf("Thin content (%d words)", words),
		Impact:       "Google prefers comprehensive content for ranking",
		FixAvailable: true,
		FixAction:    "generate_expanded_content",
		Context:      &model.IssueContext{Content: truncateRunes(page.RawTextContent, thinContextChars)},
		Explanation: model.Explanation{
			Problem:      "Your page has very little text",
			WhatItMeans:  fmt.Sprintf(`Pages with less than %d words are considered "thin" by Google`, p.ThinContentWords),
			WhyItMatters: "Comprehensive content helps you rank for more keywords and builds trust",
			SuggestedFix: "Add more details about your service, process, or benefits.",
		},
	}}
}

// VerdictIssues translates a text-insight verdict into issues.
func VerdictIssues(v Verdict) []model.Issue {
	var issues []model.Issue

	if v.Readability == ReadabilityPoor {
		issues = append(issues, model.Issue{
			Category:     model.CategoryContentQuality,
			Severity:     model.SeverityMedium,
			Issue:        "Low readability score",
			Impact:       "Users may leave your site if the text is hard to read",
			FixAvailable: true,
			Explanation: model.Explanation{
				Problem:      "Your content is difficult to read",
				WhatItMeans:  "The sentencing or vocabulary is too complex for a general audience",
				WhyItMatters: "Simpler language keeps users on the page longer",
				SuggestedFix: "Use shorter sentences and avoid industry jargon.",
			},
		})
	}

	if !v.HasCallToAction {
		issues = append(issues, model.Issue{
			Category:     model.CategoryConversionOptimization,
			Severity:     model.SeverityHigh,
			Issue:        "No clear Call to Action (CTA) detected",
			Impact:       "Visitors are not being guided to contact or buy from you.",
			FixAvailable: true,
			Explanation: model.Explanation{
				Problem:      `No clear "Call to Action" found in content`,
				WhatItMeans:  "Users do not know what step to take next",
				WhyItMatters: "Without a CTA, your traffic will not convert into leads",
				SuggestedFix: `Add a clear button or text saying "Contact Us Today" or "Get a Quote".`,
			},
		})
	}

	if len(v.MissingKeywords) > 0 {
		terms := strings.Join(v.MissingKeywords, ", ")
		issues = append(issues, model.Issue{
			Category:     model.CategoryContentQuality,
			Severity:     model.SeverityLow,
			Issue:        "Missing potential keywords: " + terms,
			Impact:       "You may be missing out on relevant search traffic",
			FixAvailable: true,
			Explanation: model.Explanation{
				Problem:      "Relevant keywords are missing from your text",
				WhatItMeans:  "Users often search for these terms when looking for your service",
				WhyItMatters: "Including these naturally helps Google match you with users",
				SuggestedFix: "Incorporate these words naturally: " + terms,
			},
		})
	}

	return issues
}

// truncateRunes cuts s to at most n runes. n <= 0 leaves s whole.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
