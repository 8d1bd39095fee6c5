// Package insight implements the text-insight capability on Anthropic:
// per-page copy judgements and site-wide keyword discovery.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/audit"
	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/resilience"
	"github.com/sells-group/site-audit/pkg/anthropic"
)

// ErrMalformedVerdict is returned when a reply does not hold the expected JSON.
var ErrMalformedVerdict = eris.New("insight: malformed verdict")

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1024

	keywordPageChars  = 3000
	keywordSoftLimit  = 15000
	keywordHardLimit  = 20000
	maxKeywords       = 20
	keywordsRequested = 15
)

const judgeSystem = `You are an SEO expert. Analyze webpage content for readability, commercial intent, and service best practices.

Reply with a single JSON object and nothing else, following this exact schema:
{
  "readability": "good" | "poor",
  "missing_keywords": ["keyword1", "keyword2"],
  "has_call_to_action": true | false,
  "analysis_summary": "Short description of content health"
}`

var keywordSystem = fmt.Sprintf(`You are an elite SEO strategist. Analyze the provided website content (homepage and internal pages) and extract exactly %d high-value, high-intent keywords this business must rank for to drive sales. Focus on "service + location" or "product + buy" intent.

Reply with a single JSON object and nothing else: {"keywords": ["..."]}`, keywordsRequested)

// Analyzer judges page copy through an Anthropic model. It satisfies
// audit.TextInsight.
type Analyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	guard     *resilience.Guard
}

var _ audit.TextInsight = (*Analyzer)(nil)

// New creates an Analyzer. A nil guard calls the client directly.
func New(client anthropic.Client, cfg config.AnthropicConfig, guard *resilience.Guard) *Analyzer {
	a := &Analyzer{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens, guard: guard}
	if a.model == "" {
		a.model = defaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = defaultMaxTokens
	}
	return a
}

type verdictReply struct {
	Readability     string   `json:"readability"`
	MissingKeywords []string `json:"missing_keywords"`
	HasCallToAction *bool    `json:"has_call_to_action"`
	AnalysisSummary string   `json:"analysis_summary"`
}

// Judge asks the model for a verdict on one page's copy.
func (a *Analyzer) Judge(ctx context.Context, pageURL, title, content string) (audit.Verdict, error) {
	text, err := a.complete(ctx, "judge", judgeSystem,
		fmt.Sprintf("URL: %s\nTitle: %s\nContent: %s", pageURL, title, content))
	if err != nil {
		return audit.Verdict{}, err
	}
	return ParseVerdict(text)
}

// ParseVerdict decodes a model reply into a Verdict. The reply must carry a
// readability of "good" or "poor" and an explicit has_call_to_action.
func ParseVerdict(text string) (audit.Verdict, error) {
	var r verdictReply
	if err := json.Unmarshal([]byte(cleanJSON(text)), &r); err != nil {
		return audit.Verdict{}, eris.Wrap(ErrMalformedVerdict, err.Error())
	}
	r.Readability = strings.ToLower(strings.TrimSpace(r.Readability))
	if r.Readability != audit.ReadabilityGood && r.Readability != audit.ReadabilityPoor {
		return audit.Verdict{}, eris.Wrapf(ErrMalformedVerdict, "readability %q", r.Readability)
	}
	if r.HasCallToAction == nil {
		return audit.Verdict{}, eris.Wrap(ErrMalformedVerdict, "has_call_to_action missing")
	}
	return audit.Verdict{
		Readability:     r.Readability,
		MissingKeywords: cleanTerms(r.MissingKeywords, 0),
		HasCallToAction: *r.HasCallToAction,
		Summary:         strings.TrimSpace(r.AnalysisSummary),
	}, nil
}

// DiscoverKeywords asks the model for the keywords the site should rank for,
// based on the crawled pages in order. At most 20 are returned.
func (a *Analyzer) DiscoverKeywords(ctx context.Context, pages []model.CrawledPage) ([]string, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	text, err := a.complete(ctx, "keywords", keywordSystem, KeywordCorpus(pages))
	if err != nil {
		return nil, err
	}

	var r struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &r); err != nil {
		return nil, eris.Wrap(ErrMalformedVerdict, err.Error())
	}
	return cleanTerms(r.Keywords, maxKeywords), nil
}

// KeywordCorpus joins page excerpts until the soft limit is passed, then cuts
// the result to the hard limit.
func KeywordCorpus(pages []model.CrawledPage) string {
	var b strings.Builder
	for _, p := range pages {
		if b.Len() >= keywordSoftLimit {
			break
		}
		fmt.Fprintf(&b, "\n\n--- Page: %s ---\nTitle: %s\n%s", p.URL, p.Title, truncate(p.RawTextContent, keywordPageChars))
	}
	return truncate(b.String(), keywordHardLimit)
}

func (a *Analyzer) complete(ctx context.Context, purpose, system, user string) (string, error) {
	call := func(ctx context.Context) (*anthropic.MessageResponse, error) {
		resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     a.model,
			MaxTokens: a.maxTokens,
			System:    system,
			Messages:  []anthropic.Message{{Role: "user", Content: user}},
		})
		if err != nil {
			if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
				return nil, resilience.NewTransientError(err, code)
			}
			return nil, err
		}
		return resp, nil
	}

	var (
		resp *anthropic.MessageResponse
		err  error
	)
	if a.guard != nil {
		resp, err = resilience.Run(ctx, a.guard, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		return "", eris.Wrapf(err, "insight: %s", purpose)
	}

	resp.Usage.LogCost(a.model, purpose)
	zap.L().Debug("insight: reply", zap.String("purpose", purpose), zap.String("stop_reason", resp.StopReason))
	return resp.Text(), nil
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or prose around it.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "```json"); ok {
		text = rest
	} else if rest, ok := strings.CutPrefix(text, "```"); ok {
		text = rest
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// cleanTerms trims, drops empties and case-insensitive duplicates, and caps
// the list at limit when limit > 0.
func cleanTerms(terms []string, limit int) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
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
