package audit

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-audit/internal/resilience"
	"github.com/sells-group/site-audit/pkg/pagespeed"
)

// PageSpeedMetrics measures pages with PageSpeed Insights.
type PageSpeedMetrics struct {
	client pagespeed.Client
	guard  *resilience.Guard
}

var _ PerformanceMetrics = (*PageSpeedMetrics)(nil)

// NewPageSpeedMetrics wraps client. A nil guard calls it directly.
func NewPageSpeedMetrics(client pagespeed.Client, guard *resilience.Guard) *PageSpeedMetrics {
	return &PageSpeedMetrics{client: client, guard: guard}
}

// Measure runs a report for url.
func (m *PageSpeedMetrics) Measure(ctx context.Context, url string) (Performance, error) {
	run := func(ctx context.Context) (*pagespeed.Report, error) {
		report, err := m.client.Run(ctx, url)
		var apiErr *pagespeed.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return report, err
	}

	var (
		report *pagespeed.Report
		err    error
	)
	if m.guard != nil {
		report, err = resilience.Run(ctx, m.guard, run)
	} else {
		report, err = run(ctx)
	}
	if err != nil {
		return Performance{}, eris.Wrap(err, "audit: pagespeed")
	}

	score, err := report.PerformanceScore()
	if err != nil {
		return Performance{}, err
	}
	return Performance{Score: score, ImageBytes: report.ImageBytes()}, nil
}
