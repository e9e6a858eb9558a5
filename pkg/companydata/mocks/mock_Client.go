// Package mocks provides test doubles for the companydata client.
package mocks

import (
	"context"

	companydata "github.com/sells-group/leadscore/pkg/companydata"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Enrich provides a mock function with given fields: ctx, req
func (_m *MockClient) Enrich(ctx context.Context, req companydata.EnrichRequest) (*companydata.CompanyProfile, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Enrich")
	}

	var r0 *companydata.CompanyProfile
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, companydata.EnrichRequest) (*companydata.CompanyProfile, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, companydata.EnrichRequest) *companydata.CompanyProfile); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*companydata.CompanyProfile)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, companydata.EnrichRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
