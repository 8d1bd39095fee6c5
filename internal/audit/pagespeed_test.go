package audit

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/resilience"
	"github.com/sells-group/site-audit/pkg/pagespeed"
	"github.com/sells-group/site-audit/pkg/pagespeed/mocks"
)

func reportWith(score float64, imageBytes int64) *pagespeed.Report {
	return &pagespeed.Report{LighthouseResult: &pagespeed.LighthouseResult{
		Categories: map[string]pagespeed.Category{"performance": {ID: "performance", Score: &score}},
		Audits: map[string]pagespeed.AuditEntry{"total-byte-weight": {Details: &pagespeed.AuditDetails{
			Items: []pagespeed.AuditItem{{URL: "https://acme.com/a.png", TotalBytes: imageBytes}},
		}}},
	}}
}

func TestPageSpeedMetrics_Measure(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Run", mock.Anything, "https://acme.com/").Return(reportWith(0.35, 3_100_000), nil)

	perf, err := NewPageSpeedMetrics(client, nil).Measure(context.Background(), "https://acme.com/")
	require.NoError(t, err)
	assert.InDelta(t, 0.35, perf.Score, 1e-9)
	assert.Equal(t, int64(3_100_000), perf.ImageBytes)

	assert.Equal(t, []string{"Slow mobile load speed (Score: 35)", "Large image files found (3.1MB total)"},
		labels(SpeedIssues(perf, DefaultPolicy())))
}

func TestPageSpeedMetrics_RetriesQuota(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Run", mock.Anything, mock.Anything).
		Return(nil, &pagespeed.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}).Once()
	client.On("Run", mock.Anything, mock.Anything).Return(reportWith(0.9, 0), nil).Once()

	guard := resilience.NewGuard("pagespeed", config.ResilienceConfig{MaxAttempts: 2, InitialBackoffMS: 1, MaxBackoffMS: 1}, 0)
	perf, err := NewPageSpeedMetrics(client, guard).Measure(context.Background(), "https://acme.com/")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, perf.Score, 1e-9)
}

func TestPageSpeedMetrics_NoPerformance(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Run", mock.Anything, mock.Anything).Return(&pagespeed.Report{}, nil)

	_, err := NewPageSpeedMetrics(client, nil).Measure(context.Background(), "https://acme.com/")
	assert.ErrorIs(t, err, pagespeed.ErrNoPerformance)
	assert.Empty(t, CheckPageSpeed(context.Background(), "https://acme.com/", NewPageSpeedMetrics(client, nil), DefaultPolicy()))
}

func TestPageSpeedMetrics_PermanentError(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Run", mock.Anything, mock.Anything).
		Return(nil, &pagespeed.APIError{StatusCode: http.StatusForbidden, Message: "API not enabled"}).Once()

	guard := resilience.NewGuard("pagespeed", config.ResilienceConfig{MaxAttempts: 3, InitialBackoffMS: 1, MaxBackoffMS: 1}, 0)
	_, err := NewPageSpeedMetrics(client, guard).Measure(context.Background(), "https://acme.com/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
