package audit

import "github.com/sells-group/site-audit/internal/model"

// MaxScore is the score of a site with no issues.
const MaxScore = 100

// Dedup keeps the first issue for each (category, label) pair, preserving
// order. Later duplicates are dropped, not merged.
func Dedup(issues []model.Issue) []model.Issue {
	seen := make(map[string]struct{}, len(issues))
	out := make([]model.Issue, 0, len(issues))
	for _, iss := range issues {
		k := iss.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, iss)
	}
	return out
}

// Score subtracts each issue's severity penalty from MaxScore, floored at 0.
// Callers pass a deduplicated set.
func Score(issues []model.Issue) int {
	score := MaxScore
	for _, iss := range issues {
		score -= iss.Severity.Penalty()
	}
	return max(score, 0)
}

// Summarize deduplicates raw issues and scores the result.
func Summarize(raw []model.Issue, pagesScanned int) model.ScanSummary {
	issues := Dedup(raw)
	return model.ScanSummary{
		Score:        Score(issues),
		Issues:       issues,
		PagesScanned: pagesScanned,
	}
}
