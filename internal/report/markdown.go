// Package report renders finished scans for people: Markdown for reading
// and XLSX for spreadsheets.
package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/site-audit/internal/model"
)

// Markdown formats a scan as a Markdown document.
func Markdown(scan *model.Scan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Site Audit: %s\n", scan.URL)
	fmt.Fprintf(&b, "Scan ID: %s\n", scan.ID)
	fmt.Fprintf(&b, "Status: %s\n", scan.Status)
	if !scan.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n", scan.CreatedAt.Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("\n")

	if scan.Error != "" {
		fmt.Fprintf(&b, "**Scan failed:** %s\n", scan.Error)
	}
	res := scan.Result
	if res == nil || scan.Status != model.ScanStatusComplete {
		return b.String()
	}
	sum := res.Summary

	// Summary.
	counts := sum.CountBySeverity()
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Health score: %d/100\n", sum.Score)
	fmt.Fprintf(&b, "- Pages scanned: %d\n", sum.PagesScanned)
	fmt.Fprintf(&b, "- Issues: %d (%d high, %d medium, %d low)\n",
		len(sum.Issues), counts[model.SeverityHigh], counts[model.SeverityMedium], counts[model.SeverityLow])
	if res.FromCache {
		b.WriteString("- Crawl served from cache\n")
	}
	if res.Probe != nil {
		fmt.Fprintf(&b, "- robots.txt: %s, sitemap.xml: %s\n", presence(res.Probe.HasRobots), presence(res.Probe.HasSitemap))
	}
	b.WriteString("\n")

	// Issues by category.
	b.WriteString("## Issues\n")
	if len(sum.Issues) == 0 {
		b.WriteString("No issues found.\n\n")
	}
	for _, cat := range model.AllCategories() {
		var inCat []model.Issue
		for _, iss := range sum.Issues {
			if iss.Category == cat {
				inCat = append(inCat, iss)
			}
		}
		if len(inCat) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n", cat)
		for _, iss := range inCat {
			fmt.Fprintf(&b, "- **[%s] %s**: %s\n", strings.ToUpper(string(iss.Severity)), iss.Issue, iss.Impact)
			if iss.Explanation.WhyItMatters != "" {
				fmt.Fprintf(&b, "  Why it matters: %s\n", iss.Explanation.WhyItMatters)
			}
			if iss.Explanation.SuggestedFix != "" {
				fmt.Fprintf(&b, "  Suggested fix: %s\n", iss.Explanation.SuggestedFix)
			}
			if iss.FixAvailable {
				fmt.Fprintf(&b, "  Auto-fix: `%s`\n", iss.FixAction)
			}
		}
		b.WriteString("\n")
	}

	if len(res.Keywords) > 0 {
		b.WriteString("## Keyword Opportunities\n")
		for _, kw := range res.Keywords {
			fmt.Fprintf(&b, "- %s\n", kw)
		}
		b.WriteString("\n")
	}

	// Pages.
	b.WriteString("## Pages\n")
	b.WriteString("| URL | Title | Words | Load (ms) |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, pg := range res.Pages {
		fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", pg.URL, escapeCell(pg.Title), pg.WordCount, pg.LoadTimeMS)
	}
	b.WriteString("\n")

	// Phase results.
	b.WriteString("## Phases\n")
	for _, p := range res.Phases {
		fmt.Fprintf(&b, "- %s: %s (%dms)\n", p.Name, p.Status, p.Duration)
		if p.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", p.Error)
		}
	}

	return b.String()
}

func presence(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
