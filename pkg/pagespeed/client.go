// Package pagespeed is a client for the Google PageSpeed Insights v5 API.
package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5"

// ErrNoPerformance is returned when a report has no performance score.
var ErrNoPerformance = eris.New("pagespeed: report has no performance category")

var imageURLRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif)$`)

// Client runs PageSpeed Insights reports.
type Client interface {
	Run(ctx context.Context, pageURL string) (*Report, error)
}

// Report is the subset of a runPagespeed response the audit reads.
type Report struct {
	ID               string            `json:"id"`
	LighthouseResult *LighthouseResult `json:"lighthouseResult"`
}

// LighthouseResult holds category scores and audits.
type LighthouseResult struct {
	FinalURL   string                `json:"finalUrl"`
	Categories map[string]Category   `json:"categories"`
	Audits     map[string]AuditEntry `json:"audits"`
}

// Category is a Lighthouse category. Score is nil when it could not be computed.
type Category struct {
	ID    string   `json:"id"`
	Score *float64 `json:"score"`
}

// AuditEntry is one Lighthouse audit.
type AuditEntry struct {
	ID      string        `json:"id"`
	Details *AuditDetails `json:"details"`
}

// AuditDetails holds an audit's table rows.
type AuditDetails struct {
	Items []AuditItem `json:"items"`
}

// AuditItem is a resource row of an audit table.
type AuditItem struct {
	URL        string `json:"url"`
	TotalBytes int64  `json:"totalBytes"`
}

// PerformanceScore returns the performance category score in [0,1].
func (r *Report) PerformanceScore() (float64, error) {
	if r == nil || r.LighthouseResult == nil {
		return 0, ErrNoPerformance
	}
	perf, ok := r.LighthouseResult.Categories["performance"]
	if !ok || perf.Score == nil {
		return 0, ErrNoPerformance
	}
	return *perf.Score, nil
}

// ImageBytes sums the transfer size of image resources in the
// total-byte-weight audit. Images are recognised by file extension.
func (r *Report) ImageBytes() int64 {
	if r == nil || r.LighthouseResult == nil {
		return 0
	}
	a, ok := r.LighthouseResult.Audits["total-byte-weight"]
	if !ok || a.Details == nil {
		return 0
	}
	var total int64
	for _, item := range a.Details.Items {
		if imageURLRe.MatchString(item.URL) {
			total += item.TotalBytes
		}
	}
	return total
}

// APIError is a non-200 reply from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pagespeed: status %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithStrategy sets the device strategy, "mobile" or "desktop".
func WithStrategy(s string) Option {
	return func(c *httpClient) {
		c.strategy = s
	}
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	strategy string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a PageSpeed Insights client. Lighthouse runs are slow,
// so the default timeout is generous.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		strategy: "mobile",
		http: &http.Client{
			Timeout: 2 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type errorReply struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *httpClient) Run(ctx context.Context, pageURL string) (*Report, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pagespeed: rate limit wait")
		}
	}

	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", c.strategy)
	q.Set("category", "performance")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runPagespeed?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: read response")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var er errorReply
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			apiErr.Message = er.Error.Message
		}
		return nil, apiErr
	}

	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, eris.Wrap(err, "pagespeed: unmarshal response")
	}
	return &report, nil
}
