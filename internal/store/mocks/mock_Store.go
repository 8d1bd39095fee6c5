// Package mocks provides test doubles for the scan store.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/site-audit/internal/model"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateScan provides a mock function with given fields: ctx, url, maxPages
func (_m *MockStore) CreateScan(ctx context.Context, url string, maxPages int) (*model.Scan, error) {
	ret := _m.Called(ctx, url, maxPages)
	var r0 *model.Scan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Scan)
	}
	return r0, ret.Error(1)
}

// UpdateScanStatus provides a mock function with given fields: ctx, scanID, status
func (_m *MockStore) UpdateScanStatus(ctx context.Context, scanID string, status model.ScanStatus) error {
	ret := _m.Called(ctx, scanID, status)
	return ret.Error(0)
}

// CompleteScan provides a mock function with given fields: ctx, scanID, result
func (_m *MockStore) CompleteScan(ctx context.Context, scanID string, result *model.ScanResult) error {
	ret := _m.Called(ctx, scanID, result)
	return ret.Error(0)
}

// FailScan provides a mock function with given fields: ctx, scanID, reason
func (_m *MockStore) FailScan(ctx context.Context, scanID string, reason string) error {
	ret := _m.Called(ctx, scanID, reason)
	return ret.Error(0)
}

// GetScan provides a mock function with given fields: ctx, scanID
func (_m *MockStore) GetScan(ctx context.Context, scanID string) (*model.Scan, error) {
	ret := _m.Called(ctx, scanID)
	var r0 *model.Scan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Scan)
	}
	return r0, ret.Error(1)
}

// ListScans provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListScans(ctx context.Context, filter model.ScanFilter) ([]model.Scan, error) {
	ret := _m.Called(ctx, filter)
	var r0 []model.Scan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Scan)
	}
	return r0, ret.Error(1)
}

// GetScreenshot provides a mock function with given fields: ctx, scanID
func (_m *MockStore) GetScreenshot(ctx context.Context, scanID string) ([]byte, error) {
	ret := _m.Called(ctx, scanID)
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

// GetCachedCrawl provides a mock function with given fields: ctx, siteURL
func (_m *MockStore) GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error) {
	ret := _m.Called(ctx, siteURL)
	var r0 *model.CrawlCache
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.CrawlCache)
	}
	return r0, ret.Error(1)
}

// SetCachedCrawl provides a mock function with given fields: ctx, siteURL, pages, ttl
func (_m *MockStore) SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error {
	ret := _m.Called(ctx, siteURL, pages, ttl)
	return ret.Error(0)
}

// DeleteExpiredCrawls provides a mock function with given fields: ctx
func (_m *MockStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	ret := _m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// Ping provides a mock function with given fields: ctx
func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
