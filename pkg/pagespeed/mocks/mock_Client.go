// Package mocks provides test doubles for the pagespeed client.
package mocks

import (
	"context"

	pagespeed "github.com/sells-group/site-audit/pkg/pagespeed"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, pageURL
func (_m *MockClient) Run(ctx context.Context, pageURL string) (*pagespeed.Report, error) {
	ret := _m.Called(ctx, pageURL)

	if len(ret) == 0 {
		panic("no return value specified for Run")
	}

	var r0 *pagespeed.Report
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*pagespeed.Report, error)); ok {
		return rf(ctx, pageURL)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *pagespeed.Report); ok {
		r0 = rf(ctx, pageURL)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*pagespeed.Report)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, pageURL)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
