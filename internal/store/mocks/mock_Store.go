// Package mocks provides test doubles for the store.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

func (_m *MockStore) CreateLead(ctx context.Context, identity *model.LeadIdentity) (string, error) {
	ret := _m.Called(ctx, identity)
	return ret.String(0), ret.Error(1)
}

func (_m *MockStore) CreateEnrichment(ctx context.Context, leadID, salesforceLeadID *string, jobID string) (*model.AuditRow, error) {
	ret := _m.Called(ctx, leadID, salesforceLeadID, jobID)

	var r0 *model.AuditRow
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.AuditRow)
	}
	return r0, ret.Error(1)
}

func (_m *MockStore) UpdateEnrichmentFacts(ctx context.Context, id, source string, facts interface{}) error {
	ret := _m.Called(ctx, id, source, facts)
	return ret.Error(0)
}

func (_m *MockStore) UpdateEnrichmentScore(ctx context.Context, id string, fitScore int, breakdown *model.ScoreBreakdown) error {
	ret := _m.Called(ctx, id, fitScore, breakdown)
	return ret.Error(0)
}

func (_m *MockStore) UpdateEnrichmentProjection(ctx context.Context, id string, projection *model.CrmProjection) error {
	ret := _m.Called(ctx, id, projection)
	return ret.Error(0)
}

func (_m *MockStore) MarkCRMUpdated(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

func (_m *MockStore) UpdateEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus, errorMessage *string) error {
	ret := _m.Called(ctx, id, status, errorMessage)
	return ret.Error(0)
}

func (_m *MockStore) GetEnrichment(ctx context.Context, id string) (*model.AuditRow, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.AuditRow
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.AuditRow)
	}
	return r0, ret.Error(1)
}

func (_m *MockStore) ListEnrichments(ctx context.Context, filter store.EnrichmentFilter) ([]model.AuditRow, error) {
	ret := _m.Called(ctx, filter)

	var r0 []model.AuditRow
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.AuditRow)
	}
	return r0, ret.Error(1)
}

func (_m *MockStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	ret := _m.Called(ctx, entry)
	return ret.Error(0)
}

func (_m *MockStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	ret := _m.Called(ctx, filter)

	var r0 []resilience.DLQEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]resilience.DLQEntry)
	}
	return r0, ret.Error(1)
}

func (_m *MockStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	ret := _m.Called(ctx, id, nextRetryAt, lastErr)
	return ret.Error(0)
}

func (_m *MockStore) RemoveDLQ(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

func (_m *MockStore) CountDLQ(ctx context.Context) (int, error) {
	ret := _m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

func (_m *MockStore) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
