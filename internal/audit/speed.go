package audit

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/model"
)

// Performance is a lab measurement of one URL.
type Performance struct {
	// Score is the performance category score in [0,1].
	Score float64
	// ImageBytes is the total transfer size of image resources.
	ImageBytes int64
}

// PerformanceMetrics measures page performance.
type PerformanceMetrics interface {
	Measure(ctx context.Context, url string) (Performance, error)
}

// CheckPageSpeed measures pageURL and reports slow loading and heavy images.
// An unavailable measurement yields no issues.
func CheckPageSpeed(ctx context.Context, pageURL string, metrics PerformanceMetrics, p Policy) []model.Issue {
	if metrics == nil {
		return nil
	}
	if p.CheckerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.CheckerTimeout)
		defer cancel()
	}

	perf, err := metrics.Measure(ctx, pageURL)
	if err != nil {
		zap.L().Warn("audit: performance metrics unavailable",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return nil
	}
	return SpeedIssues(perf, p)
}

// SpeedIssues translates a measurement into issues.
func SpeedIssues(perf Performance, p Policy) []model.Issue {
	var issues []model.Issue

	if perf.Score < p.SpeedMedium {
		sev := model.SeverityMedium
		if perf.Score < p.SpeedHigh {
			sev = model.SeverityHigh
		}
		issues = append(issues, model.Issue{
			Category:     model.CategoryPageSpeed,
			Severity:     sev,
			Issue:        fmt.Sprintf("Slow mobile load speed (Score: %d)", int(math.Round(perf.Score*100))),
			Impact:       "Slow sites lose up to 50% of visitors before they even load",
			FixAvailable: true,
			FixAction:    "optimize_performance",
			Explanation: model.Explanation{
				Problem:      "Your website loads slowly on mobile devices",
				WhatItMeans:  "It takes too long for users to see your content",
				WhyItMatters: "Google ranks fast websites higher, especially on mobile",
				SuggestedFix: "Compress images and reduce unnecessary scripts.",
			},
		})
	}

	if perf.ImageBytes > p.ImageBytesLimit {
		issues = append(issues, model.Issue{
			Category:     model.CategoryPageSpeed,
			Severity:     model.SeverityHigh,
			Issue:        fmt.Sprintf("Large image files found (%.1fMB total)", float64(perf.ImageBytes)/1e6),
			Impact:       "Images are the biggest cause of slow load times",
			FixAvailable: true,
			FixAction:    "compress_images",
			Explanation: model.Explanation{
				Problem:      "Your images are too large for the web",
				WhatItMeans:  "Mobile users have to download huge files just to see a single page",
				WhyItMatters: "Compressed images can speed up your site by 2-3 seconds",
				SuggestedFix: `Use the "Compress Images" button to auto-shrink them.`,
			},
		})
	}

	return issues
}
