package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
	storemocks "github.com/sells-group/leadscore/internal/store/mocks"
	sfmocks "github.com/sells-group/leadscore/pkg/salesforce/mocks"
)

const testLeadID = "00Qxx0000001abcDEF"

func newTestWriter(client *sfmocks.MockClient, st *storemocks.MockStore) *Writer {
	var w *Writer
	if st == nil {
		w = NewWriter(client, nil)
	} else {
		w = NewWriter(client, st)
	}
	w.retry.InitialBackoff = time.Millisecond
	w.retry.MaxBackoff = time.Millisecond
	w.nowFunc = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func testProjection() *model.CrmProjection {
	employees := model.EmployeesThree
	reviews := model.ReviewsOver14
	return &model.CrmProjection{
		HasWebsite:          true,
		NumberOfEmployees:   &employees,
		NumberOfGBPReviews:  &reviews,
		HasGMB:              false,
		SpendingOnMarketing: true,
	}
}

func TestWriterUpdate_Success(t *testing.T) {
	client := sfmocks.NewMockClient(t)
	w := newTestWriter(client, nil)

	client.On("UpdateLead", mock.Anything, testLeadID, mock.MatchedBy(func(fields map[string]any) bool {
		return fields["Fit_Score__c"] == 85 &&
			fields["Number_of_Employees__c"] == model.EmployeesThree &&
			fields["Has_Website__c"] == true
	})).Return(nil).Once()

	err := w.Update(context.Background(), testLeadID, "enr-1", 85,
		&model.ScoreBreakdown{}, testProjection())
	require.NoError(t, err)
}

func TestWriterUpdate_InvalidID(t *testing.T) {
	client := sfmocks.NewMockClient(t)
	w := newTestWriter(client, nil)

	err := w.Update(context.Background(), "not-a-lead-id", "enr-1", 85, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLeadID)
	client.AssertNotCalled(t, "UpdateLead")
}

func TestWriterUpdate_RetriesTransientThenSucceeds(t *testing.T) {
	client := sfmocks.NewMockClient(t)
	w := newTestWriter(client, nil)

	client.On("UpdateLead", mock.Anything, testLeadID, mock.Anything).
		Return(errors.New("tls handshake timeout")).Once()
	client.On("UpdateLead", mock.Anything, testLeadID, mock.Anything).
		Return(nil).Once()

	err := w.Update(context.Background(), testLeadID, "enr-1", 50, nil, nil)
	require.NoError(t, err)
	client.AssertNumberOfCalls(t, "UpdateLead", 2)
}

func TestWriterUpdate_PermanentErrorNoRetry(t *testing.T) {
	client := sfmocks.NewMockClient(t)
	st := storemocks.NewMockStore(t)
	w := newTestWriter(client, st)

	client.On("UpdateLead", mock.Anything, testLeadID, mock.Anything).
		Return(errors.New("INVALID_FIELD: No such column 'Bogus__c' on entity 'Lead'")).Once()
	st.On("EnqueueDLQ", mock.Anything, mock.MatchedBy(func(e resilience.DLQEntry) bool {
		return e.ErrorType == "permanent" && e.Update.SalesforceLeadID == testLeadID
	})).Return(nil).Once()

	err := w.Update(context.Background(), testLeadID, "enr-1", 50, nil, nil)
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "UpdateLead", 1)
}

func TestWriterUpdate_ExhaustedRetriesDeadLetters(t *testing.T) {
	client := sfmocks.NewMockClient(t)
	st := storemocks.NewMockStore(t)
	w := newTestWriter(client, st)

	client.On("UpdateLead", mock.Anything, testLeadID, mock.Anything).
		Return(errors.New("i/o timeout")).Times(3)
	st.On("EnqueueDLQ", mock.Anything, mock.MatchedBy(func(e resilience.DLQEntry) bool {
		return e.Update.EnrichmentID == "enr-1" &&
			e.MaxRetries == 3 &&
			e.NextRetryAt.After(e.CreatedAt)
	})).Return(nil).Once()

	err := w.Update(context.Background(), testLeadID, "enr-1", 50, nil, testProjection())
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "UpdateLead", 3)
}

func TestWriterReplay(t *testing.T) {
	client := sfmocks.NewMockClient(t)
	w := newTestWriter(client, nil)

	fields := map[string]any{"Fit_Score__c": 70}
	client.On("UpdateLead", mock.Anything, testLeadID, fields).Return(nil).Once()

	err := w.Replay(context.Background(), resilience.CRMUpdate{
		SalesforceLeadID: testLeadID,
		Fields:           fields,
	})
	require.NoError(t, err)
}

func TestBuildFields_OmitsNullPicklists(t *testing.T) {
	fields, err := BuildFields(42, &model.ScoreBreakdown{
		Solvency: model.SolvencyBreakdown{Website: 20, Total: 42},
	}, &model.CrmProjection{HasWebsite: true})
	require.NoError(t, err)

	assert.Equal(t, 42, fields["Fit_Score__c"])
	assert.Contains(t, fields["Score_Breakdown__c"], `"total":42`)
	assert.Equal(t, true, fields["Has_Website__c"])
	assert.NotContains(t, fields, "Number_of_Employees__c")
	assert.NotContains(t, fields, "Location_Type__c")
	assert.NotContains(t, fields, "GMB_URL__c")
}

func TestBuildFields_NilProjection(t *testing.T) {
	fields, err := BuildFields(0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Fit_Score__c": 0}, fields)
}
